// Command natpmp-client requests port mappings from a NAT-PMP gateway
// and prints the result. It can also query the gateway's public address.
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/noxworld-dev/natpmp"
)

var (
	fUDP      bool
	fLifetime time.Duration
	fGateway  string
	fTimeout  time.Duration
	fRetries  int
	fVerbose  bool
)

func main() {
	root := &cobra.Command{
		Use:   "natpmp-client [flags] public_port private_port",
		Short: "request a port mapping from a NAT-PMP gateway",
		Long: `Requests a TCP (or, with -u, UDP) port mapping from the NAT-PMP
gateway and prints the mapping the gateway granted. The granted public
port and lifetime may differ from the requested ones.

A mapping is deleted by requesting it with a lifetime of 0.`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if fVerbose {
				natpmp.Log = zerolog.New(zerolog.NewConsoleWriter()).With().Timestamp().Logger()
			}
		},
		RunE: runMap,
	}
	root.Flags().BoolVarP(&fUDP, "udp", "u", false, "map a UDP port instead of TCP")
	root.Flags().DurationVarP(&fLifetime, "lifetime", "l", natpmp.DefaultLifetime, "mapping lifetime; 0 deletes the mapping")
	root.PersistentFlags().StringVarP(&fGateway, "gateway", "g", "", "gateway address (default: auto-detect)")
	root.PersistentFlags().DurationVar(&fTimeout, "timeout", natpmp.DefaultTimeout, "time to wait for each response")
	root.PersistentFlags().IntVar(&fRetries, "retries", 1, "attempts per request (timeouts only)")
	root.PersistentFlags().BoolVarP(&fVerbose, "verbose", "v", false, "log protocol details to stderr")

	root.AddCommand(&cobra.Command{
		Use:           "public-address",
		Short:         "print the gateway's public IP address",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runPublicAddress,
	})

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "natpmp-client:", explain(err))
		os.Exit(1)
	}
}

func newClient() (*natpmp.Client, error) {
	c := &natpmp.Client{Timeout: fTimeout}
	if fGateway != "" {
		ip := net.ParseIP(fGateway)
		if ip = ip.To4(); ip == nil {
			return nil, fmt.Errorf("invalid gateway address %q", fGateway)
		}
		c.Gateway = ip
	}
	return c, nil
}

func runMap(cmd *cobra.Command, args []string) error {
	publicPort, err := parsePort(args[0])
	if err != nil {
		return err
	}
	privatePort, err := parsePort(args[1])
	if err != nil {
		return err
	}
	client, err := newClient()
	if err != nil {
		return err
	}
	proto := natpmp.TCP
	if fUDP {
		proto = natpmp.UDP
	}

	var res *natpmp.MappingResult
	err = natpmp.Retry(cmd.Context(), fRetries, func(ctx context.Context) error {
		var err error
		res, err = client.MapPort(ctx, proto, privatePort, publicPort, fLifetime)
		return err
	})
	if err != nil {
		return err
	}
	if res.Lifetime == 0 {
		fmt.Printf("deleted %s mapping for private port %d\n", proto, res.PrivatePort)
		return nil
	}
	fmt.Printf("mapped public port %d/%s to private port %d for %v\n",
		res.PublicPort, proto, res.PrivatePort, res.Lifetime)
	return nil
}

func runPublicAddress(cmd *cobra.Command, args []string) error {
	client, err := newClient()
	if err != nil {
		return err
	}
	var res *natpmp.PublicAddressResult
	err = natpmp.Retry(cmd.Context(), fRetries, func(ctx context.Context) error {
		var err error
		res, err = client.GetPublicAddress(ctx)
		return err
	})
	if err != nil {
		return err
	}
	fmt.Println(res.Addr)
	return nil
}

func parsePort(s string) (uint16, error) {
	n, err := strconv.ParseUint(s, 10, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid port %q", s)
	}
	return uint16(n), nil
}

// explain turns library errors into messages that tell the user what to
// do next: "no router answered" is not "router said no" is not "could
// not find your router".
func explain(err error) string {
	var refused *natpmp.RefusedError
	switch {
	case errors.As(err, &refused):
		return fmt.Sprintf("the gateway refused the request: %s", refused.Code)
	case errors.Is(err, natpmp.ErrTimeout):
		return "no NAT-PMP gateway answered; is NAT-PMP enabled on your router?"
	case errors.Is(err, natpmp.ErrNoGateway):
		return "could not determine your gateway address; pass it with -g"
	}
	return err.Error()
}
