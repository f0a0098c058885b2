package search

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"

	"github.com/vmihailenco/msgpack/v5"

	"firewatch/core"
)

// fingerprintLen is the hex length the query fingerprint is truncated to.
const fingerprintLen = 32

// cursorPayload is the wire shape of a pagination token. Field names are
// kept short because the token travels on every paginated response.
type cursorPayload struct {
	Offset      int    `msgpack:"o"`
	Fingerprint string `msgpack:"f"`
}

// Fingerprint derives a stable digest of a query's identity: the canonical
// AST text, the entity type and the sort order. Two requests with
// the same fingerprint paginate the same logical result set, so a cursor
// minted under one fingerprint is rejected under any other.
func Fingerprint(ast *Node, entity core.EntityType, sortSpec string) string {
	h := sha256.New()
	h.Write([]byte(ast.String()))
	h.Write([]byte{0})
	h.Write([]byte(entity))
	h.Write([]byte{0})
	h.Write([]byte(sortSpec))
	return hex.EncodeToString(h.Sum(nil))[:fingerprintLen]
}

// EncodeCursor mints an opaque pagination token binding a result offset to
// the query fingerprint.
func EncodeCursor(offset int, fingerprint string) string {
	payload, err := msgpack.Marshal(cursorPayload{Offset: offset, Fingerprint: fingerprint})
	if err != nil {
		// A two-field struct of scalars cannot fail to marshal.
		return ""
	}
	return base64.RawURLEncoding.EncodeToString(payload)
}

// DecodeCursor opens a pagination token and verifies it belongs to the
// query being paginated. Malformed tokens, tokens minted for a different
// query, and nonsensical offsets all come back as *CursorError; the caller
// must report that to the client instead of restarting from offset zero.
func DecodeCursor(token, fingerprint string) (int, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return 0, &CursorError{Message: "cursor is not valid base64url"}
	}

	var payload cursorPayload
	if err := msgpack.Unmarshal(raw, &payload); err != nil {
		return 0, &CursorError{Message: "cursor payload is malformed"}
	}

	if payload.Offset < 0 {
		return 0, &CursorError{Message: "cursor offset is negative"}
	}
	if payload.Fingerprint != fingerprint {
		return 0, &CursorError{Message: "cursor belongs to a different query; re-issue the search without a cursor"}
	}

	return payload.Offset, nil
}
