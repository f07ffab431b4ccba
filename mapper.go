package natpmp

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
)

// Port describes a port to map.
type Port struct {
	Proto Protocol
	Port  uint16
	// Lifetime to request; 0 means DefaultLifetime.
	Lifetime time.Duration
}

func (p Port) String() string {
	return fmt.Sprintf("%d/%s", p.Port, p.Proto)
}

// MapPorts maps each port on the gateway, requesting the same public and
// private port number, and returns a function that deletes every mapping
// that was established. If any mapping fails, the ones already made are
// deleted and the first error is returned.
//
// The mappings are requested concurrently; see the Client documentation
// for what that means on the wire.
func MapPorts(ctx context.Context, c *Client, ports []Port) (func(), error) {
	if len(ports) == 0 {
		return func() {}, nil
	}
	Log.Info().Int("n", len(ports)).Msg("mapping ports")

	results := make([]*MappingResult, len(ports))
	tasks, ctx := errgroup.WithContext(ctx)
	for i, p := range ports {
		i, p := i, p
		tasks.Go(func() error {
			lifetime := p.Lifetime
			if lifetime == 0 {
				lifetime = DefaultLifetime
			}
			res, err := c.MapPort(ctx, p.Proto, p.Port, p.Port, lifetime)
			if err != nil {
				Log.Warn().Stringer("port", p).Err(err).Msg("mapping failed")
				return err
			}
			Log.Info().Stringer("port", p).Uint16("public", res.PublicPort).Dur("lifetime", res.Lifetime).Msg("mapped")
			results[i] = res
			return nil
		})
	}

	stop := func() {
		for i, res := range results {
			if res == nil {
				continue
			}
			if _, err := c.UnmapPort(context.Background(), res.Protocol, res.PrivatePort); err != nil {
				Log.Warn().Stringer("port", ports[i]).Err(err).Msg("unmap failed")
			}
			results[i] = nil
		}
	}

	if err := tasks.Wait(); err != nil {
		stop()
		return nil, err
	}
	return stop, nil
}
