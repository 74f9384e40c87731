package app

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/rancher/repo-sync/internal/git"
	"github.com/rancher/repo-sync/internal/orchestrator"
)

// runReport is what the end-of-run summary covers. Either part may be nil.
type runReport struct {
	Sync    *orchestrator.Result
	Release *ReleaseOutcome
}

type outputRunSummary struct {
	Branch        string `json:"branch,omitempty"`
	PublicBranch  string `json:"public_branch,omitempty"`
	PrivateRemote string `json:"private_remote,omitempty"`
	PublicRemote  string `json:"public_remote,omitempty"`
	Unborn        bool   `json:"unborn"`
	PrivatePushed bool   `json:"private_pushed"`
	Strategy      string `json:"strategy,omitempty"`
	PublicCommit  string `json:"public_commit,omitempty"`
	DryRun        bool   `json:"dry_run"`

	Version       string `json:"version,omitempty"`
	Tag           string `json:"tag,omitempty"`
	ReleaseCommit bool   `json:"release_commit,omitempty"`
	ReleaseURL    string `json:"release_url,omitempty"`
}

// report renders the run table into the log output and, inside GitHub
// Actions, the step summary and outputs. Failures are logged, never returned.
func (r *Runner) report(s *session, rep runReport) {
	t := summaryTable(rep)
	t.SetStyle(table.StyleRounded)
	fmt.Fprintln(s.out, t.Render())

	if err := writeStepSummary(rep); err != nil {
		s.log.Warn("failed to write step summary", "error", err)
	}
	if err := writeGitHubOutputs(rep); err != nil {
		s.log.Warn("failed to write action outputs", "error", err)
	}
}

func summaryTable(rep runReport) table.Writer {
	t := table.NewWriter()
	t.SetTitle("repo-sync")
	t.AppendHeader(table.Row{"Field", "Value"})

	if rel := rep.Release; rel != nil {
		t.AppendRow(table.Row{"Release range", valueOrDash(rel.Release.Since)})
		t.AppendRow(table.Row{"Changelog", valueOrDash(filepath.Base(rel.Release.ChangelogPath))})
		if rel.Release.Version != "" {
			t.AppendRow(table.Row{"Version", fmt.Sprintf("%s → %s", rel.Release.PreviousVersion, rel.Release.Version)})
		}
		t.AppendRow(table.Row{"Release commit", valueOrDash(rel.Release.CommitMessage)})
		t.AppendRow(table.Row{"Committed", strconv.FormatBool(rel.Release.Committed)})
		t.AppendRow(table.Row{"Tag", valueOrDash(rel.Release.Tag)})
		if rel.ReleaseURL != "" {
			t.AppendRow(table.Row{"GitHub release", rel.ReleaseURL})
		}
		if rep.Sync != nil {
			t.AppendSeparator()
		}
	}

	if res := rep.Sync; res != nil {
		t.AppendRow(table.Row{"Branch", valueOrDash(res.Branch)})
		t.AppendRow(table.Row{"Private remote", remoteLabel(res.PrivateRemote)})
		t.AppendRow(table.Row{"Private pushed", strconv.FormatBool(res.PrivatePushed)})
		t.AppendRow(table.Row{"Public remote", remoteLabel(res.PublicRemote)})
		t.AppendRow(table.Row{"Public branch", valueOrDash(res.PublicBranch)})
		t.AppendRow(table.Row{"Strategy", valueOrDash(string(res.Strategy))})
		t.AppendRow(table.Row{"Public commit", valueOrDash(res.PublicCommit)})
		t.AppendRow(table.Row{"Public message", valueOrDash(firstLine(res.PublicMessage))})
		t.AppendRow(table.Row{"Dry run", strconv.FormatBool(res.DryRun)})
	}

	return t
}

func writeStepSummary(rep runReport) error {
	path := strings.TrimSpace(os.Getenv("GITHUB_STEP_SUMMARY"))
	if path == "" {
		return nil
	}

	// GitHub Actions normally creates the directory; a failure here still lets
	// the open below decide.
	dir := filepath.Dir(path)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if mkErr := os.MkdirAll(dir, 0o755); mkErr != nil {
			fmt.Fprintf(os.Stderr, "warning: could not create summary directory: %v\n", mkErr)
		}
	}

	var builder strings.Builder
	builder.WriteString("## repo-sync summary\n\n")
	builder.WriteString(summaryTable(rep).RenderMarkdown())
	builder.WriteString("\n")
	if rep.Release != nil {
		builder.WriteString("\n### Release notes\n\n")
		builder.WriteString(rep.Release.Release.Body())
		builder.WriteString("\n")
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open step summary: %w", err)
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil {
			fmt.Fprintf(os.Stderr, "failed to close step summary file: %v\n", closeErr)
		}
	}()

	if _, err := file.WriteString(builder.String()); err != nil {
		return fmt.Errorf("write step summary: %w", err)
	}

	return nil
}

func writeGitHubOutputs(rep runReport) error {
	path := strings.TrimSpace(os.Getenv("GITHUB_OUTPUT"))
	if path == "" {
		return nil
	}

	dir := filepath.Dir(path)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if mkErr := os.MkdirAll(dir, 0o755); mkErr != nil {
			fmt.Fprintf(os.Stderr, "warning: could not create outputs directory: %v\n", mkErr)
		}
	}

	summary := runSummary(rep)
	summaryJSON, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("marshal run_summary: %w", err)
	}

	outputs := []struct{ key, value string }{
		{"strategy", summary.Strategy},
		{"public_commit", summary.PublicCommit},
		{"private_pushed", strconv.FormatBool(summary.PrivatePushed)},
	}
	if rep.Release != nil {
		outputs = append(outputs,
			struct{ key, value string }{"version", summary.Version},
			struct{ key, value string }{"tag", summary.Tag},
			struct{ key, value string }{"release_url", summary.ReleaseURL},
		)
	}
	outputs = append(outputs, struct{ key, value string }{"run_summary", string(summaryJSON)})

	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open github output: %w", err)
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil {
			fmt.Fprintf(os.Stderr, "failed to close github output file: %v\n", closeErr)
		}
	}()

	for _, out := range outputs {
		if err := writeMultilineOutput(file, out.key, out.value); err != nil {
			return err
		}
	}

	return nil
}

func runSummary(rep runReport) outputRunSummary {
	var summary outputRunSummary
	if res := rep.Sync; res != nil {
		summary.Branch = res.Branch
		summary.PublicBranch = res.PublicBranch
		summary.PrivateRemote = res.PrivateRemote.Name
		summary.PublicRemote = res.PublicRemote.Name
		summary.Unborn = res.LocalUnborn
		summary.PrivatePushed = res.PrivatePushed
		summary.Strategy = string(res.Strategy)
		summary.PublicCommit = res.PublicCommit
		summary.DryRun = res.DryRun
	}
	if rel := rep.Release; rel != nil {
		summary.Version = rel.Release.Version
		summary.Tag = rel.Release.Tag
		summary.ReleaseCommit = rel.Release.Committed
		summary.ReleaseURL = rel.ReleaseURL
		if rep.Sync == nil {
			summary.Branch = rel.Release.Branch
			summary.Unborn = rel.Release.Unborn
		}
	}
	return summary
}

func writeMultilineOutput(file *os.File, key, value string) error {
	if _, err := fmt.Fprintf(file, "%s<<EOF\n%s\nEOF\n", key, value); err != nil {
		return fmt.Errorf("write output %s: %w", key, err)
	}
	return nil
}

func remoteLabel(r git.Remote) string {
	if r.Name == "" {
		return "-"
	}
	if r.URL == "" {
		return r.Name
	}
	return fmt.Sprintf("%s (%s)", r.Name, r.URL)
}

func firstLine(value string) string {
	value = strings.TrimSpace(value)
	if i := strings.IndexByte(value, '\n'); i >= 0 {
		return strings.TrimSpace(value[:i])
	}
	return value
}

func valueOrDash(value string) string {
	if value = strings.TrimSpace(value); value == "" {
		return "-"
	}
	return value
}
