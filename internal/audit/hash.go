package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"
)

// SnapshotHash digests the set of candidate ids. The ids are sorted and
// rendered as a JSON array with ", " separators and non-ASCII text left
// unescaped, then hashed with SHA-256. Input order does not matter.
func SnapshotHash(ids []string) string {
	sorted := make([]string, len(ids))
	copy(sorted, ids)
	sort.Strings(sorted)

	var b strings.Builder
	b.WriteByte('[')
	for i, id := range sorted {
		if i > 0 {
			b.WriteString(", ")
		}
		writeJSONString(&b, id)
	}
	b.WriteByte(']')

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

func writeJSONString(b *strings.Builder, s string) {
	b.WriteByte('"')
	for i, r := range s {
		if r == utf8.RuneError {
			if _, size := utf8.DecodeRuneInString(s[i:]); size == 1 {
				// Invalid bytes are kept as-is so they stay distinct.
				b.WriteByte(s[i])
				continue
			}
		}
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		case '\b':
			b.WriteString(`\b`)
		case '\f':
			b.WriteString(`\f`)
		default:
			if r < 0x20 {
				fmt.Fprintf(b, `\u%04x`, r)
				continue
			}
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
}
