package runner

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	dErrors "onboarding/pkg/domain-errors"
)

// Tool runs a single subcommand. *Runner implements it.
type Tool interface {
	Run(ctx context.Context, dir string, step Step, args ...string) (string, error)
}

var tracer = otel.Tracer("onboarding/provisioning/runner")

// RunWorkflow drives init, plan, apply and output in order. Each step must
// succeed before the next starts. It returns the stdout of the output step.
func RunWorkflow(ctx context.Context, tool Tool, dir, tenant string) (string, error) {
	domainVar := "-var=user_domain=" + tenant
	steps := []struct {
		step Step
		args []string
	}{
		{StepInit, []string{"-input=false"}},
		{StepPlan, []string{"-input=false", domainVar}},
		{StepApply, []string{"-input=false", "-auto-approve", domainVar}},
		{StepOutput, []string{"-json"}},
	}

	var out string
	for _, s := range steps {
		stepCtx, span := tracer.Start(ctx, "tool."+string(s.step))
		span.SetAttributes(attribute.String("tool.step", string(s.step)))
		stdout, err := tool.Run(stepCtx, dir, s.step, s.args...)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, string(s.step)+" failed")
			span.End()
			if dErrors.CodeOf(err) == dErrors.CodeInternal {
				err = dErrors.Wrap(err, dErrors.CodeToolExecution, string(s.step)+" failed")
			}
			return "", err
		}
		span.End()
		out = stdout
	}
	return out, nil
}
