package game

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"

	"github.com/fparadis2/mox/internal/game/object"
)

// Checksum is a deterministic hash of every object of a manager. Two
// managers holding the same objects, values and collection orders have the
// same checksum, whatever the order the commands were applied in.
func Checksum(m *object.Manager) string {
	sum := sha256.Sum256([]byte(canonical(m)))
	return hex.EncodeToString(sum[:])
}

// Checksum hashes the current state of the game.
func (g *Game) Checksum() string {
	return Checksum(g.Objects)
}

func canonical(m *object.Manager) string {
	var buf bytes.Buffer
	for _, id := range m.Objects() {
		fmt.Fprintf(&buf, "OBJECT:%d|%s\n", id, m.Kind(id))

		values := m.Values(id)
		props := make([]*object.Property, 0, len(values))
		for p := range values {
			props = append(props, p)
		}
		sort.Slice(props, func(i, j int) bool { return props[i].Name() < props[j].Name() })
		for _, p := range props {
			fmt.Fprintf(&buf, "  %s=%v\n", p.Name(), values[p])
		}

		collections := m.Collections(id)
		colls := make([]*object.Property, 0, len(collections))
		for p := range collections {
			colls = append(colls, p)
		}
		sort.Slice(colls, func(i, j int) bool { return colls[i].Name() < colls[j].Name() })
		for _, p := range colls {
			fmt.Fprintf(&buf, "  %s=%v\n", p.Name(), collections[p])
		}
	}
	return buf.String()
}
