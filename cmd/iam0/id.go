package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/iam0-cloud/iam0-core/pkg/id"
)

var (
	idCount   int
	idService uint16
	idWorker  uint16
	idDecode  string
)

// idCmd represents the id command
var idCmd = &cobra.Command{
	Use:   "id",
	Short: "Generate or decode identifiers",
	Long: `Generate 128-bit identifiers, or decode one with --decode.

An identifier packs a millisecond timestamp, a per-millisecond sequence, the
service and worker ids and 20 random bits.

Examples:
  iam0 id --count 3 --service 1 --worker 2
  iam0 id --decode 0000018c...`,
	RunE: runID,
}

func init() {
	idCmd.Flags().IntVarP(&idCount, "count", "n", 1, "number of identifiers to generate")
	idCmd.Flags().Uint16Var(&idService, "service", 0, "service id")
	idCmd.Flags().Uint16Var(&idWorker, "worker", 0, "worker id")
	idCmd.Flags().StringVar(&idDecode, "decode", "", "identifier to decode (hex or base64)")

	if err := viper.BindPFlag("service_id", idCmd.Flags().Lookup("service")); err != nil {
		panic(fmt.Sprintf("failed to bind service flag: %v", err))
	}
	if err := viper.BindPFlag("worker_id", idCmd.Flags().Lookup("worker")); err != nil {
		panic(fmt.Sprintf("failed to bind worker flag: %v", err))
	}
}

func runID(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	if idDecode != "" {
		v, err := id.ParseHex(idDecode)
		if err != nil {
			if v, err = id.ParseBase64(idDecode); err != nil {
				return fmt.Errorf("not a hex or base64 identifier: %s", idDecode)
			}
		}
		fmt.Fprintf(out, "hex:       %s\n", v.Hex())
		fmt.Fprintf(out, "base64:    %s\n", v.Base64())
		fmt.Fprintf(out, "timestamp: %s\n", v.Timestamp().Format("2006-01-02T15:04:05.000Z07:00"))
		fmt.Fprintf(out, "sequence:  %d\n", v.Sequence())
		fmt.Fprintf(out, "service:   %d\n", v.Service())
		fmt.Fprintf(out, "worker:    %d\n", v.Worker())
		fmt.Fprintf(out, "random:    %d\n", v.Random())
		return nil
	}

	if idCount < 1 {
		return fmt.Errorf("count must be positive, got %d", idCount)
	}
	gen, err := id.NewGenerator(uint16(viper.GetUint("service_id")), uint16(viper.GetUint("worker_id")))
	if err != nil {
		return err
	}
	for i := 0; i < idCount; i++ {
		v, err := gen.Next()
		if err != nil {
			return err
		}
		fmt.Fprintln(out, v.Hex())
	}
	return nil
}
