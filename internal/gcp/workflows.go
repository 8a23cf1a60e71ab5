package gcp

import (
	"context"
	"encoding/json"
	"fmt"

	executions "cloud.google.com/go/workflows/executions/apiv1"
	"cloud.google.com/go/workflows/executions/apiv1/executionspb"
)

// WorkflowRef names a deployed Cloud Workflow.
type WorkflowRef struct {
	ProjectID string
	Location  string
	ID        string
}

// Parent returns the resource name executions are created under.
func (w WorkflowRef) Parent() string {
	return fmt.Sprintf("projects/%s/locations/%s/workflows/%s", w.ProjectID, w.Location, w.ID)
}

// TriggerWorkflow starts an execution with argument encoded as JSON and
// returns the execution name.
func TriggerWorkflow(ctx context.Context, client *executions.Client, wf WorkflowRef, argument any) (string, error) {
	payload, err := json.Marshal(argument)
	if err != nil {
		return "", fmt.Errorf("failed to marshal workflow payload: %w", err)
	}
	req := &executionspb.CreateExecutionRequest{
		Parent: wf.Parent(),
		Execution: &executionspb.Execution{
			Argument: string(payload),
		},
	}
	exec, err := client.CreateExecution(ctx, req)
	if err != nil {
		return "", fmt.Errorf("failed to trigger workflow execution: %w", err)
	}
	return exec.GetName(), nil
}
