package adapter

import "fmt"

// mockRunner implements CommandRunner with scripted per-command responses,
// mirroring the Rust test suites' MockRunner.
type mockRunner struct {
	responses map[string]mockResponse
}

type mockResponse struct {
	stdout  string
	stderr  string
	success bool
	err     error
}

func newMockRunner() *mockRunner {
	return &mockRunner{responses: map[string]mockResponse{}}
}

func (m *mockRunner) register(cmd string, resp mockResponse) {
	m.responses[cmd] = resp
}

func (m *mockRunner) Run(program string, args ...string) (string, string, bool, error) {
	key := program
	for _, a := range args {
		key += " " + a
	}
	resp, ok := m.responses[key]
	if !ok {
		return "", "", false, fmt.Errorf("no mock for: %s", key)
	}
	return resp.stdout, resp.stderr, resp.success, resp.err
}

func success(stdout string) mockResponse {
	return mockResponse{stdout: stdout, success: true}
}
