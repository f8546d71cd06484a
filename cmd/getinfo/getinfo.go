package getinfo

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/vicegrid/gridnet/config"
	"github.com/vicegrid/gridnet/protocol"
	"github.com/vicegrid/gridnet/transport"
)

var (
	timeout = config.DefaultInfoTimeout

	Cmd = &cobra.Command{
		Use:   "getinfo <host> [port]",
		Short: "Query a server's info string and print it",
		Args:  cobra.RangeArgs(1, 2),
		RunE:  queryInfo,
	}
)

func init() {
	Cmd.Flags().DurationVarP(&timeout, "timeout", "t", timeout, "how long to wait for a reply")
}

func queryInfo(cmd *cobra.Command, args []string) error {
	logger := log.With().Str("com", "getinfo-cmd").Logger()

	port := config.DefaultServerPort
	if len(args) == 2 {
		p, err := strconv.ParseUint(args[1], 10, 16)
		if err != nil {
			return fmt.Errorf("invalid port %q: %w", args[1], err)
		}
		port = uint16(p)
	}

	addr, err := transport.ResolveNetAddress(args[0], port)
	if err != nil {
		return err
	}

	trans, err := transport.NewTransport(log.Logger)
	if err != nil {
		return err
	}
	defer trans.Close()

	buf := protocol.NewNetBuffer(4 + len("getinfo xyz"))
	buf.WriteUint32(protocol.OOBPrefix)
	buf.WriteString("getinfo xyz")

	logger.Info().Stringer("server", addr).Msg("querying server")
	if err := trans.Send(addr, buf.Bytes()); err != nil {
		return err
	}

	info, err := awaitInfoResponse(trans, addr, timeout)
	if err != nil {
		return err
	}

	printInfo(info)
	return nil
}

// awaitInfoResponse polls the transport until an infoResponse arrives
// from the queried server or the deadline passes. Datagrams from other
// peers and non-matching OOB commands are ignored.
func awaitInfoResponse(trans *transport.Transport, server transport.NetAddress, timeout time.Duration) (string, error) {
	const marker = "infoResponse "
	deadline := time.Now().Add(timeout)

	var info string
	found := false

	for time.Now().Before(deadline) && !found {
		trans.Drain(func(data []byte, from transport.NetAddress) {
			if found || from != server || len(data) < 4 {
				return
			}
			if binary.LittleEndian.Uint32(data[:4]) != protocol.OOBPrefix {
				return
			}

			text := string(data[4:])
			if !strings.HasPrefix(text, marker) {
				return
			}

			info = strings.TrimRight(text[len(marker):], "\n\x00")
			found = true
		})

		if !found {
			time.Sleep(50 * time.Millisecond)
		}
	}

	if !found {
		return "", errors.New("no reply from server")
	}
	return info, nil
}

func printInfo(info string) {
	pairs := parseInfoString(info)

	keys := make([]string, 0, len(pairs))
	for k := range pairs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	tw := tablewriter.NewWriter(os.Stdout)
	tw.SetHeader([]string{"Key", "Value"})
	tw.SetBorder(true)
	tw.SetAutoWrapText(false)

	for _, k := range keys {
		tw.Append([]string{k, protocol.StripColors(pairs[k])})
	}

	tw.Render()
}

func parseInfoString(s string) map[string]string {
	pairs := make(map[string]string)

	s = strings.TrimPrefix(s, "\\")
	fields := strings.Split(s, "\\")
	for i := 0; i+1 < len(fields); i += 2 {
		pairs[fields[i]] = fields[i+1]
	}

	return pairs
}
