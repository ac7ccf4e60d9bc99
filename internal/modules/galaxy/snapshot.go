package galaxy

import (
	"fmt"
	"math"
	"sort"

	"github.com/rs/zerolog"

	"github.com/rhaume/starledger/internal/domain"
	"github.com/rhaume/starledger/internal/modules/colors"
)

// Hyperlane widths and marker sizes, owned versus unclaimed. Owned
// territory is drawn wide and large so borders read at a glance.
const (
	ownedEdgeWidth     = 8.0
	unclaimedEdgeWidth = 1.0
	ownedNodeSize      = 10.0
	unclaimedNodeSize  = 4.0
	markerOutlineWidth = 0.5
)

// SnapshotBuilder renders the galactic map as it looked on a given date.
type SnapshotBuilder struct {
	repo domain.GalaxyRepository
	log  zerolog.Logger
}

func NewSnapshotBuilder(repo domain.GalaxyRepository, log zerolog.Logger) *SnapshotBuilder {
	return &SnapshotBuilder{
		repo: repo,
		log:  log.With().Str("builder", "galaxy").Logger(),
	}
}

// Snapshot resolves every system's owner at the date and groups hyperlanes
// and systems into one trace per owner. A hyperlane belongs to a country
// only while it holds both endpoints; every other lane renders unclaimed.
func (b *SnapshotBuilder) Snapshot(date float64) (*GalaxyTraces, error) {
	systems, err := b.repo.Systems()
	if err != nil {
		return nil, fmt.Errorf("failed to load systems: %w", err)
	}
	hyperlanes, err := b.repo.Hyperlanes()
	if err != nil {
		return nil, fmt.Errorf("failed to load hyperlanes: %w", err)
	}
	history, err := b.repo.OwnershipHistory()
	if err != nil {
		return nil, fmt.Errorf("failed to load ownership history: %w", err)
	}

	positions := make(map[int64]domain.System, len(systems))
	owners := make(map[int64]string, len(systems))
	for _, s := range systems {
		positions[s.SystemID] = s
		owners[s.SystemID] = ownerAt(history[s.SystemID], date)
	}

	return &GalaxyTraces{
		Edges: b.edgeTraces(hyperlanes, positions, owners),
		Nodes: nodeTraces(systems, owners),
	}, nil
}

// ownerAt resolves who held a system at the date: the latest change at or
// before it. Unclaimed when the history is empty or starts later.
func ownerAt(changes []domain.OwnershipChange, date float64) string {
	i := sort.Search(len(changes), func(i int) bool {
		return float64(changes[i].Date) > date
	})
	if i == 0 {
		return domain.Unclaimed
	}
	return changes[i-1].Owner
}

// edgeTraces groups hyperlanes by owner, in the order owners first appear.
// Each edge contributes both endpoints plus a gap marker so the lanes of
// one trace don't connect to each other.
func (b *SnapshotBuilder) edgeTraces(hyperlanes []domain.Hyperlane, positions map[int64]domain.System, owners map[int64]string) []EdgeTrace {
	index := make(map[string]int)
	edges := []EdgeTrace{}
	for _, lane := range hyperlanes {
		from, okA := positions[lane.SystemA]
		to, okB := positions[lane.SystemB]
		if !okA || !okB {
			b.log.Debug().
				Int64("system_a", lane.SystemA).
				Int64("system_b", lane.SystemB).
				Msg("Hyperlane references an unknown system")
			continue
		}

		owner := domain.Unclaimed
		if owners[lane.SystemA] == owners[lane.SystemB] {
			owner = owners[lane.SystemA]
		}

		i, ok := index[owner]
		if !ok {
			i = len(edges)
			index[owner] = i
			width := ownedEdgeWidth
			if owner == domain.Unclaimed {
				width = unclaimedEdgeWidth
			}
			edges = append(edges, EdgeTrace{
				Mode:      "lines",
				HoverInfo: "text",
				Line:      EdgeLine{Color: colors.ForCountry(owner, 1.0), Width: width},
			})
		}

		edges[i].X = append(edges[i].X, from.X, to.X, math.NaN())
		edges[i].Y = append(edges[i].Y, from.Y, to.Y, math.NaN())
		edges[i].Text = append(edges[i].Text, owner)
	}
	return edges
}

// nodeTraces groups systems by owner, in the order owners first appear.
func nodeTraces(systems []domain.System, owners map[int64]string) []NodeTrace {
	index := make(map[string]int)
	nodes := []NodeTrace{}
	for _, s := range systems {
		owner := owners[s.SystemID]

		i, ok := index[owner]
		if !ok {
			i = len(nodes)
			index[owner] = i
			size := ownedNodeSize
			if owner == domain.Unclaimed {
				size = unclaimedNodeSize
			}
			nodes = append(nodes, NodeTrace{
				Name:      owner,
				Mode:      "markers",
				HoverInfo: "text",
				Marker:    NodeMarker{Size: size, Line: MarkerLine{Width: markerOutlineWidth}},
			})
		}

		label := s.Name
		if owner != domain.Unclaimed {
			label = fmt.Sprintf("%s (%s)", s.Name, owner)
		}
		nodes[i].X = append(nodes[i].X, s.X)
		nodes[i].Y = append(nodes[i].Y, s.Y)
		nodes[i].Text = append(nodes[i].Text, label)
		nodes[i].Marker.Colors = append(nodes[i].Marker.Colors, colors.ForCountry(owner, 1.0))
	}
	return nodes
}
