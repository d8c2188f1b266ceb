package graph

import (
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/skeletor-js/medulla/internal/types"
)

// MinPrefixLength is the shortest hex prefix accepted as a short id.
const MinPrefixLength = 4

// IsSequence reports whether id is a pure-decimal sequence number.
func IsSequence(id string) bool {
	if id == "" {
		return false
	}
	for _, c := range id {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// Resolve maps a short id — a decimal sequence number or a
// case-insensitive hex prefix of length >= 4 (dashes optional) — to the
// entity's uuid and kind. A prefix matching multiple entities resolves
// to the first one in kind-enumeration order.
func Resolve(src Source, id string) (uuid.UUID, types.Kind, error) {
	isSeq := IsSequence(id)
	for _, kind := range types.Kinds {
		entities, err := src.ListEntities(kind)
		if err != nil {
			return uuid.Nil, "", err
		}
		for _, e := range entities {
			if matches(e.Base(), id, isSeq) {
				return e.Base().ID, kind, nil
			}
		}
	}
	return uuid.Nil, "", types.NotFound(id)
}

// ResolveKind resolves a short id within a single kind.
func ResolveKind(src Source, kind types.Kind, id string) (uuid.UUID, error) {
	isSeq := IsSequence(id)
	entities, err := src.ListEntities(kind)
	if err != nil {
		return uuid.Nil, err
	}
	for _, e := range entities {
		if matches(e.Base(), id, isSeq) {
			return e.Base().ID, nil
		}
	}
	return uuid.Nil, types.NotFound(id)
}

// matches checks a short id against one entity. Sequence ids compare
// numerically; prefix ids compare against the canonical form with
// dashes stripped.
func matches(base *types.EntityBase, id string, isSeq bool) bool {
	if isSeq {
		n, err := strconv.ParseUint(id, 10, 32)
		return err == nil && uint32(n) == base.SequenceNumber
	}
	if len(strings.ReplaceAll(id, "-", "")) < MinPrefixLength {
		return false
	}
	canonical := strings.ToLower(strings.ReplaceAll(base.ID.String(), "-", ""))
	needle := strings.ToLower(strings.ReplaceAll(id, "-", ""))
	return strings.HasPrefix(canonical, needle)
}
