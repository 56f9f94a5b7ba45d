package usercache

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind selects what a Ref points at.
type Kind uint8

const (
	Collection Kind = iota // the full listing
	Item                   // a single record by id
)

func (k Kind) String() string {
	switch k {
	case Collection:
		return "collection"
	case Item:
		return "item"
	default:
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Ref is a logical reference to cached data. ID is ignored for Collection.
type Ref struct {
	Kind Kind
	ID   int64
}

// DefaultPrefix names the keyspace used by DeriveKey.
const DefaultPrefix = "resource"

const (
	sep        = "_"
	listSuffix = "list"
)

// Keyspace derives cache keys for one resource type:
//
//	Collection -> <prefix>_list
//	Item(id)   -> <prefix>_<decimal id>
//
// "_" never occurs inside a decimal id and "list" is not a number, so
// distinct refs never share a key. The prefix must not contain "_" either,
// otherwise one keyspace could shadow another ("user" vs "user_1").
type Keyspace struct {
	Prefix string
}

func NewKeyspace(prefix string) (Keyspace, error) {
	if prefix == "" {
		return Keyspace{}, fmt.Errorf("usercache: empty keyspace prefix")
	}
	if strings.ContainsAny(prefix, sep+"*?[]\\ ") {
		return Keyspace{}, fmt.Errorf("usercache: keyspace prefix %q contains a reserved character", prefix)
	}
	return Keyspace{Prefix: prefix}, nil
}

func (k Keyspace) Collection() string { return k.Prefix + sep + listSuffix }

func (k Keyspace) Item(id int64) string { return k.Prefix + sep + strconv.FormatInt(id, 10) }

func (k Keyspace) Derive(r Ref) string {
	if r.Kind == Collection {
		return k.Collection()
	}
	return k.Item(r.ID)
}

// Pattern is a glob matching every key of the keyspace.
func (k Keyspace) Pattern() string { return k.Prefix + sep + "*" }

// DeriveKey maps a ref to its key in the default keyspace:
// "resource_list" or "resource_<id>".
func DeriveKey(kind Kind, id int64) string {
	return Keyspace{Prefix: DefaultPrefix}.Derive(Ref{Kind: kind, ID: id})
}
