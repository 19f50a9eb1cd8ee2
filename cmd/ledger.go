// Copyright 2017 Pilosa Corp.
//
// Redistribution and use in source and binary forms, with or without
// modification, are permitted provided that the following conditions
// are met:
//
// 1. Redistributions of source code must retain the above copyright
// notice, this list of conditions and the following disclaimer.
//
// 2. Redistributions in binary form must reproduce the above copyright
// notice, this list of conditions and the following disclaimer in the
// documentation and/or other materials provided with the distribution.
//
// 3. Neither the name of the copyright holder nor the names of its
// contributors may be used to endorse or promote products derived
// from this software without specific prior written permission.
//
// THIS SOFTWARE IS PROVIDED BY THE COPYRIGHT HOLDERS AND
// CONTRIBUTORS "AS IS" AND ANY EXPRESS OR IMPLIED WARRANTIES,
// INCLUDING, BUT NOT LIMITED TO, THE IMPLIED WARRANTIES OF
// MERCHANTABILITY AND FITNESS FOR A PARTICULAR PURPOSE ARE
// DISCLAIMED. IN NO EVENT SHALL THE COPYRIGHT HOLDER OR
// CONTRIBUTORS BE LIABLE FOR ANY DIRECT, INDIRECT, INCIDENTAL,
// SPECIAL, EXEMPLARY, OR CONSEQUENTIAL DAMAGES (INCLUDING,
// BUT NOT LIMITED TO, PROCUREMENT OF SUBSTITUTE GOODS OR
// SERVICES; LOSS OF USE, DATA, OR PROFITS; OR BUSINESS
// INTERRUPTION) HOWEVER CAUSED AND ON ANY THEORY OF LIABILITY,
// WHETHER IN CONTRACT, STRICT LIABILITY, OR TORT (INCLUDING
// NEGLIGENCE OR OTHERWISE) ARISING IN ANY WAY OUT OF THE USE
// OF THIS SOFTWARE, EVEN IF ADVISED OF THE POSSIBILITY OF SUCH
// DAMAGE.

package cmd

import (
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/eventlake/canon"
)

// NewLedgerCommand returns a cobra command which summarizes an ingestion
// ledger file.
func NewLedgerCommand(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	var path string
	ledgerCommand := &cobra.Command{
		Use:   "ledger",
		Short: "ledger - summarize an ingestion ledger file",
		RunE: func(cmd *cobra.Command, args []string) error {
			var r io.Reader = stdin
			if path != "" {
				f, err := os.Open(path)
				if err != nil {
					return err
				}
				defer f.Close()
				r = f
			}
			ledger := canon.LoadLedger(r)
			fmt.Fprintf(stdout, "entries: %d\n", ledger.Len())
			fmt.Fprintf(stdout, "max batch id: %d\n", ledger.MaxBatchID())
			counts := ledger.Batches()
			ids := make([]int, 0, len(counts))
			for id := range counts {
				ids = append(ids, id)
			}
			sort.Ints(ids)
			for _, id := range ids {
				fmt.Fprintf(stdout, "batch %d: %d files\n", id, counts[id])
			}
			return nil
		},
	}
	ledgerCommand.Flags().StringVar(&path, "path", "", "Ledger file to summarize. Reads stdin when empty.")
	return ledgerCommand
}

func init() {
	subcommandFns["ledger"] = NewLedgerCommand
}
