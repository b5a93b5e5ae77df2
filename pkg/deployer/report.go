package deployer

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/afero"

	"github.com/tokamak-network/tokamak-deploy-uniswapV3-CLI/pkg/deployer/pipeline"
	"github.com/tokamak-network/tokamak-deploy-uniswapV3-CLI/pkg/deployer/state"
)

// Report is the outcome of one apply run. It is written on success and on
// failure.
type Report struct {
	RunID    string         `json:"runId"`
	ChainID  uint64         `json:"chainId"`
	Deployer common.Address `json:"deployer"`
	Phase    string         `json:"phase"`
	Error    string         `json:"error,omitempty"`
	Steps    []StepReport   `json:"steps"`
	State    *state.State   `json:"state"`
}

type StepReport struct {
	Step    int                   `json:"step"`
	Name    string                `json:"name"`
	Outputs []pipeline.StepOutput `json:"outputs"`
}

func NewStepReport(res pipeline.StepResult) StepReport {
	return StepReport{
		Step:    res.Index + 1,
		Name:    res.Name,
		Outputs: res.Outputs,
	}
}

// WriteReport writes r as indented JSON to path, or to stdout when path is "-".
func WriteReport(fs afero.Fs, path string, stdout io.Writer, r *Report) error {
	if path == "-" {
		return encodeJSON(stdout, r)
	}
	if err := fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	f, err := fs.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	if err := encodeJSON(f, r); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func encodeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	return nil
}

// RenderState prints every recorded address in migration order.
func RenderState(w io.Writer, st *state.State) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Contract", "Address"})
	table.SetBorders(tablewriter.Border{Left: true, Top: false, Right: true, Bottom: false})
	table.SetCenterSeparator("|")
	table.SetAutoWrapText(false)

	entries := st.Entries()
	if len(entries) == 0 {
		table.Append([]string{"(none)", ""})
	}
	for _, e := range entries {
		table.Append([]string{string(e.Key), e.Address.Hex()})
	}
	table.Render()
}

// RenderSteps prints one row per step output.
func RenderSteps(w io.Writer, steps []StepReport) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Step", "Name", "Message", "Transaction"})
	table.SetAutoMergeCells(true)
	table.SetBorders(tablewriter.Border{Left: true, Top: false, Right: true, Bottom: false})
	table.SetCenterSeparator("|")
	table.SetAutoWrapText(false)

	for _, s := range steps {
		for _, out := range s.Outputs {
			hash := ""
			if out.Hash != nil {
				hash = out.Hash.Hex()
			}
			table.Append([]string{strconv.Itoa(s.Step), s.Name, out.Message, hash})
		}
	}
	table.Render()
}
