package services

import (
	"fmt"

	"github.com/custodia-labs/dirsync/internal/core/domain"
)

// DefaultBatchSize bounds each large-import request when none is configured.
const DefaultBatchSize = 2000

// RequestBuilder converts entries into import requests.
type RequestBuilder interface {
	BuildRequests(groups []domain.GroupEntry, users []domain.UserEntry, opts domain.BuildOptions) ([]domain.ImportRequest, error)
}

// SelectRequestBuilder returns the batch builder when largeImport is set and
// the single builder otherwise. Entry counts never influence the choice.
func SelectRequestBuilder(largeImport bool) RequestBuilder {
	if largeImport {
		return BatchRequestBuilder{}
	}
	return SingleRequestBuilder{}
}

// SingleRequestBuilder emits every entry in one request.
type SingleRequestBuilder struct{}

// BuildRequests implements RequestBuilder.
func (SingleRequestBuilder) BuildRequests(groups []domain.GroupEntry, users []domain.UserEntry, opts domain.BuildOptions) ([]domain.ImportRequest, error) {
	return []domain.ImportRequest{{
		Groups:            groupPayloads(groups),
		Users:             userPayloads(users, opts.RemoveDisabled),
		OverwriteExisting: opts.OverwriteExisting,
		LargeImport:       false,
	}}, nil
}

// BatchRequestBuilder partitions users, then groups, into requests of at
// most BatchSize entries each.
type BatchRequestBuilder struct{}

// BuildRequests implements RequestBuilder.
func (BatchRequestBuilder) BuildRequests(groups []domain.GroupEntry, users []domain.UserEntry, opts domain.BuildOptions) ([]domain.ImportRequest, error) {
	if opts.OverwriteExisting {
		return nil, fmt.Errorf("%w: you cannot use the 'Remove and re-add organization users during the next sync' option with large imports", domain.ErrValidation)
	}

	size := opts.BatchSize
	if size <= 0 {
		size = DefaultBatchSize
	}

	requests := []domain.ImportRequest{}

	up := userPayloads(users, opts.RemoveDisabled)
	for i := 0; i < len(up); i += size {
		requests = append(requests, domain.ImportRequest{
			Groups:      []domain.GroupPayload{},
			Users:       up[i:min(i+size, len(up))],
			LargeImport: true,
		})
	}

	gp := groupPayloads(groups)
	for i := 0; i < len(gp); i += size {
		requests = append(requests, domain.ImportRequest{
			Groups:      gp[i:min(i+size, len(gp))],
			Users:       []domain.UserPayload{},
			LargeImport: true,
		})
	}

	return requests, nil
}

func groupPayloads(groups []domain.GroupEntry) []domain.GroupPayload {
	out := make([]domain.GroupPayload, 0, len(groups))
	for _, g := range groups {
		out = append(out, domain.NewGroupPayload(g))
	}
	return out
}

func userPayloads(users []domain.UserEntry, removeDisabled bool) []domain.UserPayload {
	out := make([]domain.UserPayload, 0, len(users))
	for _, u := range users {
		out = append(out, domain.NewUserPayload(u, removeDisabled))
	}
	return out
}
