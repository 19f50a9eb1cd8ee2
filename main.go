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

package canon

import (
	"context"
	"os"

	"github.com/rs/zerolog"
)

// Main contains the configuration for one ingestion run.
type Main struct {
	Source            []string `help:"Source locations to ingest: s3:// or hdfs:// URIs, or local paths."`
	OutputRoot        string   `help:"Destination root for the canonical corpus and its ledger."`
	FilesPerBatch     int      `help:"Maximum number of source files merged into one batch."`
	S3Region          string   `help:"AWS region for S3 sources and output."`
	MapConcurrency    int      `help:"Number of concurrent map workers."`
	ReduceConcurrency int      `help:"Number of concurrent reduce workers."`
	Debug             bool     `help:"Enable debug logging."`
}

// NewMain gets a new Main with the default configuration.
func NewMain() *Main {
	return &Main{
		FilesPerBatch:     10000,
		S3Region:          "us-east-1",
		MapConcurrency:    8,
		ReduceConcurrency: 4,
	}
}

// Run runs one ingestion pass with the in-process engine.
func (m *Main) Run() error {
	return m.RunWithStats(NopStatter{})
}

// RunWithStats runs one ingestion pass, reporting liveness counters to
// stats.
func (m *Main) RunWithStats(stats Statter) error {
	level := zerolog.InfoLevel
	if m.Debug {
		level = zerolog.DebugLevel
	}
	logger := zerolog.New(os.Stderr).With().Timestamp().Logger().Level(level)

	pipeline := &Pipeline{
		Sources:       m.Source,
		OutputRoot:    m.OutputRoot,
		FilesPerBatch: m.FilesPerBatch,
		S3Region:      m.S3Region,
		Runner: &LocalRunner{
			MapConcurrency:    m.MapConcurrency,
			ReduceConcurrency: m.ReduceConcurrency,
		},
		Stats: stats,
		Log:   logger,
	}
	return pipeline.Run(context.Background())
}
