package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"code-intelligence.com/fuzzgate/pkg/sandbox"
)

type RunnerMock struct {
	mock.Mock
}

func (m *RunnerMock) Run(ctx context.Context, request *sandbox.Request) (*sandbox.Result, error) {
	args := m.Called(ctx, request)
	var result *sandbox.Result
	if args.Get(0) != nil {
		result = args.Get(0).(*sandbox.Result)
	}
	return result, args.Error(1)
}

type BuildFetcherMock struct {
	mock.Mock
}

func (m *BuildFetcherMock) DownloadLatestBuild(project, targetName string) (string, error) {
	args := m.Called(project, targetName)
	return args.String(0), args.Error(1)
}

func (m *BuildFetcherMock) DownloadLatestCorpus(project, targetName string) (string, error) {
	args := m.Called(project, targetName)
	return args.String(0), args.Error(1)
}
