package runner

import (
	"context"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/hugo-lorenzo-mato/council/internal/core"
	"github.com/hugo-lorenzo-mato/council/internal/jobdir"
	"github.com/hugo-lorenzo-mato/council/internal/parser"
)

// criticRoles is fixed and ordered: critique.xml always concatenates
// critic_a before critic_b, regardless of which one finishes first.
var criticRoles = []string{core.RoleCriticA, core.RoleCriticB}

// runCriticism fans the context bundle out to every critic role in
// parallel and concatenates their raw replies into critique.xml in a
// fixed, deterministic order, independent of completion order.
func (r *Runner) runCriticism(ctx context.Context, jc *jobCtx) error {
	data := baseData(jc)
	data.Files = jc.bundle.Files
	if jc.baselineRes != nil {
		data.BaselineVerify = summarizeVerify(jc.baselineRes)
	}

	replies := make([]string, len(criticRoles))

	g, gctx := errgroup.WithContext(ctx)
	for i, role := range criticRoles {
		i, role := i, role
		g.Go(func() error {
			reply, err := r.callRole(gctx, jc, role, "critic", data)
			if err != nil {
				return err
			}
			replies[i] = reply
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	var findings []core.Finding
	var combined strings.Builder
	for i, role := range criticRoles {
		combined.WriteString("<critic id=\"" + role + "\">\n")
		combined.WriteString(replies[i])
		combined.WriteString("\n</critic>\n")

		fs, warnings := parser.ExtractFindings(replies[i])
		findings = append(findings, fs...)
		for _, w := range warnings {
			r.warn(jc, role+": "+w.Message)
		}
	}

	jc.critiqueText = combined.String()
	if len(findings) == 0 {
		r.note(jc, core.PhaseCriticism, "no findings reported by either critic")
	}

	return r.writeTextArtifact(jc, "critique", jobdir.Critique(jc.jobDir), jc.critiqueText)
}

func summarizeVerify(result *core.VerifyResult) string {
	var b strings.Builder
	for _, cr := range result.Commands {
		status := "ok"
		if cr.ExitCode != 0 {
			status = "exit " + strconv.Itoa(cr.ExitCode)
		}
		b.WriteString(strings.Join(cr.Command, " ") + ": " + status + "\n")
	}
	return b.String()
}
