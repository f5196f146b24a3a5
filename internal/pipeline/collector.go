package pipeline

import (
	"encoding/json"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"
)

// CollectedFile is one artifact read from the pipeline's output
// directory, fully in memory.
type CollectedFile struct {
	Name        string
	Path        string
	ContentType string
	Data        []byte
}

// Collector locates and reads the artifacts a completed job reported in
// its history entry. It refuses partial results: any expected file that
// is missing or unreadable fails the whole collection.
type Collector struct {
	outputDir string
	log       zerolog.Logger
}

func NewCollector(outputDir string, log zerolog.Logger) *Collector {
	return &Collector{
		outputDir: outputDir,
		log:       log.With().Str("component", "collector").Logger(),
	}
}

// Collect returns every output file of the entry in deterministic
// order (node id, then output kind, then reported file order), plus any
// companion .txt sidecar the pipeline wrote next to an artifact.
func (c *Collector) Collect(entry *HistoryEntry) ([]CollectedFile, error) {
	if entry == nil || len(entry.Outputs) == 0 {
		return nil, fmt.Errorf("%w: history entry has no outputs", ErrOutputMissing)
	}

	refs := outputFileRefs(entry)
	if len(refs) == 0 {
		return nil, fmt.Errorf("%w: no output files among node outputs", ErrOutputMissing)
	}

	paths := make([]string, 0, len(refs))
	for _, ref := range refs {
		paths = append(paths, filepath.Join(c.outputDir, ref.Subfolder, ref.Filename))
	}

	// Some nodes write a .txt sidecar (e.g. prompts or metadata) next
	// to the artifact; pick those up when present.
	for _, p := range paths {
		sidecar := strings.TrimSuffix(p, filepath.Ext(p)) + ".txt"
		if sidecar == p {
			continue
		}
		if _, err := os.Stat(sidecar); err == nil {
			paths = append(paths, sidecar)
		}
	}

	files := make([]CollectedFile, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrOutputMissing, p, err)
		}
		name := filepath.Base(p)
		files = append(files, CollectedFile{
			Name:        name,
			Path:        p,
			ContentType: contentTypeFor(name),
			Data:        data,
		})
		c.log.Debug().Str("path", p).Int("bytes", len(data)).Msg("artifact collected")
	}

	return files, nil
}

// outputFileRefs filters the raw node outputs down to real output
// files, ordered by node id and output kind.
func outputFileRefs(entry *HistoryEntry) []OutputFile {
	nodeIDs := make([]string, 0, len(entry.Outputs))
	for id := range entry.Outputs {
		nodeIDs = append(nodeIDs, id)
	}
	sort.Strings(nodeIDs)

	var refs []OutputFile
	for _, nodeID := range nodeIDs {
		node := entry.Outputs[nodeID]

		kinds := make([]string, 0, len(node))
		for k := range node {
			kinds = append(kinds, k)
		}
		sort.Strings(kinds)

		for _, kind := range kinds {
			raw := node[kind]

			var list []OutputFile
			if err := json.Unmarshal(raw, &list); err == nil {
				for _, f := range list {
					if isOutputFile(f) {
						refs = append(refs, f)
					}
				}
				continue
			}

			var single OutputFile
			if err := json.Unmarshal(raw, &single); err == nil && isOutputFile(single) {
				refs = append(refs, single)
			}
		}
	}
	return refs
}

func isOutputFile(f OutputFile) bool {
	return f.Filename != "" && f.Type == "output"
}

func contentTypeFor(name string) string {
	if ct := mime.TypeByExtension(filepath.Ext(name)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
