package diagfmt

import (
	"io"
	"sort"

	json "github.com/goccy/go-json"

	"github.com/ousttrue/pycpptool/internal/diag"
	"github.com/ousttrue/pycpptool/internal/source"
)

const sarifSchema = "https://docs.oasis-open.org/sarif/sarif/v2.1.0/errata01/os/schemas/sarif-schema-2.1.0.json"

type sarifLog struct {
	Schema  string     `json:"$schema"`
	Version string     `json:"version"`
	Runs    []sarifRun `json:"runs"`
}

type sarifRun struct {
	Tool        sarifTool         `json:"tool"`
	Invocations []sarifInvocation `json:"invocations,omitempty"`
	Results     []sarifResult     `json:"results"`
}

type sarifTool struct {
	Driver sarifDriver `json:"driver"`
}

type sarifDriver struct {
	Name    string      `json:"name"`
	Version string      `json:"version,omitempty"`
	Rules   []sarifRule `json:"rules,omitempty"`
}

type sarifRule struct {
	ID               string       `json:"id"`
	ShortDescription sarifMessage `json:"shortDescription"`
}

type sarifInvocation struct {
	Arguments           []string `json:"arguments,omitempty"`
	ExecutionSuccessful bool     `json:"executionSuccessful"`
}

type sarifResult struct {
	RuleID    string          `json:"ruleId"`
	Level     string          `json:"level"`
	Message   sarifMessage    `json:"message"`
	Locations []sarifLocation `json:"locations,omitempty"`
}

type sarifMessage struct {
	Text string `json:"text"`
}

type sarifLocation struct {
	PhysicalLocation sarifPhysicalLocation `json:"physicalLocation"`
}

type sarifPhysicalLocation struct {
	ArtifactLocation sarifArtifactLocation `json:"artifactLocation"`
	Region           *sarifRegion          `json:"region,omitempty"`
}

type sarifArtifactLocation struct {
	URI string `json:"uri"`
}

type sarifRegion struct {
	StartLine   uint32 `json:"startLine"`
	StartColumn uint32 `json:"startColumn"`
	EndLine     uint32 `json:"endLine"`
	EndColumn   uint32 `json:"endColumn"`
}

func sarifLevel(sev diag.Severity) string {
	switch sev {
	case diag.SevError:
		return "error"
	case diag.SevWarning:
		return "warning"
	default:
		return "note"
	}
}

// Sarif writes the diagnostics as a SARIF 2.1.0 log with one run. The
// rule table collects every code the bag used, so viewers can show
// titles without a side channel.
func Sarif(w io.Writer, bag *diag.Bag, fs *source.FileSet, meta SarifRunMeta) error {
	items := bag.Items()

	seen := make(map[diag.Code]bool)
	codes := make([]diag.Code, 0, 8)
	results := make([]sarifResult, 0, len(items))
	for _, d := range items {
		if !seen[d.Code] {
			seen[d.Code] = true
			codes = append(codes, d.Code)
		}

		res := sarifResult{
			RuleID:  d.Code.ID(),
			Level:   sarifLevel(d.Severity),
			Message: sarifMessage{Text: d.Message},
		}
		if fs != nil && d.Primary != (source.Span{}) && int(d.Primary.File) < fs.Len() {
			f := fs.Get(d.Primary.File)
			start, end := fs.Resolve(d.Primary)
			res.Locations = []sarifLocation{{
				PhysicalLocation: sarifPhysicalLocation{
					ArtifactLocation: sarifArtifactLocation{URI: f.FormatPath("auto", "")},
					Region: &sarifRegion{
						StartLine:   start.Line,
						StartColumn: start.Col,
						EndLine:     end.Line,
						EndColumn:   end.Col,
					},
				},
			}}
		}
		results = append(results, res)
	}

	sort.Slice(codes, func(i, j int) bool { return codes[i] < codes[j] })
	rules := make([]sarifRule, len(codes))
	for i, c := range codes {
		rules[i] = sarifRule{
			ID:               c.ID(),
			ShortDescription: sarifMessage{Text: c.Title()},
		}
	}

	name := meta.ToolName
	if name == "" {
		name = "cpptool"
	}
	log := sarifLog{
		Schema:  sarifSchema,
		Version: "2.1.0",
		Runs: []sarifRun{{
			Tool: sarifTool{Driver: sarifDriver{
				Name:    name,
				Version: meta.ToolVersion,
				Rules:   rules,
			}},
			Invocations: []sarifInvocation{{
				Arguments:           meta.InvocationArgs,
				ExecutionSuccessful: !bag.HasErrors(),
			}},
			Results: results,
		}},
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(log)
}
