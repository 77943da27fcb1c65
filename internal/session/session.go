// Package session assembles the pieces a command needs to talk to a live
// target — dial the communicator a profile names, scan its ELF/DWARF type
// graph, and wrap both in a proxy.Lib — so cmd and inspect share one
// construction path instead of repeating it per subcommand.
package session

import (
	"fmt"
	"time"

	"github.com/remlink/rlg/internal/commlink"
	"github.com/remlink/rlg/internal/config"
	"github.com/remlink/rlg/internal/dwarfgraph"
	"github.com/remlink/rlg/internal/output"
	"github.com/remlink/rlg/internal/proxy"
	"github.com/remlink/rlg/internal/protocol"
	"github.com/remlink/rlg/internal/scratch"
)

// DialTimeout bounds the initial dial for tcp and vsock profiles; serial
// profiles do not use it.
const DialTimeout = 5 * time.Second

// defaultScratchSize is used when a profile doesn't name a scratch symbol
// with its own harvested size; large enough for the small argument/return
// buffers a companion call typically needs.
const defaultScratchSize = 4096

// defaultWordSize matches the common 32-bit embedded target; Connect
// overrides it once the ELF's class is known.
const defaultWordSize = 4

// Session bundles everything one command invocation needs to talk to a
// target: the dialed link, the typed library facade, and a Close that tears
// both down together.
type Session struct {
	Client *protocol.Client
	Lib    *proxy.Lib
}

// Connect dials p's target, scans its ELF/DWARF graph, and wires a scratch
// allocator sized from p.ScratchSymbol (or defaultScratchSize when unset).
func Connect(p config.TargetProfile) (*Session, error) {
	comm, err := dial(p)
	if err != nil {
		return nil, err
	}

	graph, err := dwarfgraph.Build(p.ELFPath, dwarfgraph.Options{
		Tolerant: true,
		Logger:   output.Logger,
	})
	if err != nil {
		comm.Close()
		return nil, fmt.Errorf("session: scanning %s: %w", p.ELFPath, err)
	}

	word := defaultWordSize
	if graph.WordSize > 0 {
		word = graph.WordSize
	}
	client := protocol.NewClient(comm, word)

	base, size := scratchRegion(graph, p.ScratchSymbol)
	alloc := scratch.New(client, base, size)

	cfg, err := config.Load()
	prefix := "_rlg_"
	if err == nil && cfg.CompanionPrefix != "" {
		prefix = cfg.CompanionPrefix
	}
	proxy.CompatibilityMode = err == nil && cfg.CompatibilityMode

	lib := proxy.New(graph, client, alloc, prefix)
	return &Session{Client: client, Lib: lib}, nil
}

// Close releases the underlying link.
func (s *Session) Close() error {
	return s.Client.Close()
}

func dial(p config.TargetProfile) (commlink.Communicator, error) {
	switch p.Kind {
	case "tcp":
		return commlink.DialTCP(p.Address, DialTimeout)
	case "serial":
		baud := p.Baud
		if baud == 0 {
			baud = 115200
		}
		return commlink.OpenSerial(p.Device, baud)
	case "vsock":
		return commlink.DialVsock(p.Device, p.VsockPort, DialTimeout)
	default:
		return nil, fmt.Errorf("session: profile %q: unknown kind %q", p.Name, p.Kind)
	}
}

// scratchRegion resolves the arena a profile's scratch symbol describes —
// an array or buffer global reserved by the target build for host-driven
// allocations. With no symbol named, gti2_memory and then pyroxene_memory
// are tried. It falls back to a zero base and defaultScratchSize when no
// symbol is found or the graph doesn't carry it.
func scratchRegion(graph *dwarfgraph.Graph, symbol string) (uint64, int) {
	if symbol == "" {
		for _, s := range []string{"gti2_memory", "pyroxene_memory"} {
			if _, ok := graph.Lookup(s); ok {
				symbol = s
				break
			}
		}
		if symbol == "" {
			return 0, defaultScratchSize
		}
	}
	node, ok := graph.Lookup(symbol)
	if !ok || node.Address == nil {
		return 0, defaultScratchSize
	}
	size := defaultScratchSize
	if node.Base != nil && node.Base.Size > 0 {
		size = int(node.Base.Size)
	} else if node.Size > 0 {
		size = int(node.Size)
	}
	return *node.Address, size
}
