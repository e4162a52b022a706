package actions

import (
	"context"

	"github.com/tidwall/gjson"

	"github.com/teano-uTTu-9788/AiCan/pkg/api"
)

// n8n webhook paths for the CI actions
const (
	HookRunTests         = "run-tests"
	HookBuild            = "build"
	HookIntegrationTests = "integration-tests"
)

func (a *actions) runTests(
	ctx context.Context, args api.Args,
) (api.Args, error) {
	body, err := a.svc.N8n.TriggerWebhook(ctx, HookRunTests, args)
	if err != nil {
		return nil, err
	}
	return api.Args{
		KeyTestsPassed: firstBool(body, "passed", "tests_passed", "success"),
		KeyTestSummary: gjson.GetBytes(body, "summary").String(),
	}, nil
}

func (a *actions) buildApplication(
	ctx context.Context, args api.Args,
) (api.Args, error) {
	body, err := a.svc.N8n.TriggerWebhook(ctx, HookBuild, args)
	if err != nil {
		return nil, err
	}
	res := api.Args{
		KeyBuildSucceeded: firstBool(body, "build_succeeded", "success"),
	}
	if id := firstString(body, "build_id", "id"); id != "" {
		res[KeyBuildID] = id
	}
	if url := gjson.GetBytes(body, "artifact_url"); url.Exists() {
		res[KeyArtifactURL] = url.String()
	}
	return res, nil
}

func (a *actions) runIntegrationTests(
	ctx context.Context, args api.Args,
) (api.Args, error) {
	body, err := a.svc.N8n.TriggerWebhook(ctx, HookIntegrationTests, args)
	if err != nil {
		return nil, err
	}
	passed := firstBool(body, "passed", "integration_tests_passed", "success")
	res := api.Args{
		KeyIntegrationTestsPassed: passed,
	}
	if args.GetString(KeyEnvironment, "") == EnvStaging {
		res[KeyStagingTestsPassed] = passed
	}
	return res, nil
}

func firstBool(body []byte, paths ...string) bool {
	for _, p := range paths {
		if r := gjson.GetBytes(body, p); r.Exists() {
			return r.Bool()
		}
	}
	return false
}

func firstString(body []byte, paths ...string) string {
	for _, p := range paths {
		if r := gjson.GetBytes(body, p); r.Exists() {
			return r.String()
		}
	}
	return ""
}
