package redis

import (
	"bufio"
	"strconv"
	"strings"

	pr "github.com/unkn0wn-root/usercache/provider"
)

// parseInfo reads the "field:value" lines of an INFO reply.
// Section headers ("# Server") and unknown fields are ignored.
func parseInfo(raw string) pr.ServerInfo {
	var si pr.ServerInfo
	sc := bufio.NewScanner(strings.NewReader(raw))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		k, v, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		switch k {
		case "redis_version":
			si.Version = v
		case "used_memory":
			si.UsedMemory = atoi(v)
		case "used_memory_human":
			si.UsedMemoryHuman = v
		case "connected_clients":
			si.ConnectedClients = atoi(v)
		case "total_commands_processed":
			si.CommandsProcessed = atoi(v)
		case "keyspace_hits":
			si.Hits = atoi(v)
		case "keyspace_misses":
			si.Misses = atoi(v)
		}
	}
	return si
}

func atoi(s string) int64 {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return n
}
