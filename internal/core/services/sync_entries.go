package services

import (
	"fmt"
	"sort"
	"strings"

	"github.com/custodia-labs/dirsync/internal/core/domain"
)

// maxEmailLength is the longest email the import endpoint accepts.
const maxEmailLength = 256

// filterUnsupportedUsers drops users without an email or with one the import
// endpoint would reject.
func filterUnsupportedUsers(users []domain.UserEntry) []domain.UserEntry {
	if users == nil {
		return nil
	}
	out := make([]domain.UserEntry, 0, len(users))
	for _, u := range users {
		if u.Email != "" && len(u.Email) <= maxEmailLength {
			out = append(out, u)
		}
	}
	return out
}

// flattenUsersToGroups adds to every group the user members of each group
// reachable through its nested group references. Cycles are tolerated.
func flattenUsersToGroups(groups []domain.GroupEntry) {
	byRef := make(map[string]int, len(groups))
	for i, g := range groups {
		byRef[g.ReferenceID] = i
	}

	flat := make([]domain.IDSet, len(groups))
	for i := range groups {
		members := make(domain.IDSet)
		visited := map[int]bool{i: true}
		stack := []int{i}
		for len(stack) > 0 {
			cur := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			for id := range groups[cur].UserMemberExternalIDs {
				members.Add(id)
			}
			for ref := range groups[cur].GroupMemberReferenceIDs {
				child, ok := byRef[ref]
				if ok && !visited[child] {
					visited[child] = true
					stack = append(stack, child)
				}
			}
		}
		flat[i] = members
	}

	for i := range groups {
		groups[i].UserMemberExternalIDs = flat[i]
	}
}

// removeDuplicateUsers collapses users sharing an email. Identical
// duplicates and duplicates that are all deleted are allowed; anything
// else is a validation error naming the conflicting emails.
func removeDuplicateUsers(users []domain.UserEntry) ([]domain.UserEntry, error) {
	if users == nil {
		return nil, nil
	}

	unique := make([]domain.UserEntry, 0, len(users))
	active := make(map[string]domain.UserEntry)
	deleted := make(map[string]struct{})
	var conflicts []string

	for _, u := range users {
		if prev, ok := active[u.Email]; ok {
			if prev != u {
				conflicts = append(conflicts, u.Email)
			}
			continue
		}
		if u.Deleted {
			deleted[u.Email] = struct{}{}
			unique = append(unique, u)
			continue
		}
		if _, ok := deleted[u.Email]; ok {
			conflicts = append(conflicts, u.Email)
			continue
		}
		active[u.Email] = u
		unique = append(unique, u)
	}

	if len(conflicts) > 0 {
		msg := strings.Join(conflicts, ", ")
		if len(conflicts) > 3 {
			msg = fmt.Sprintf("%s and %d more", strings.Join(conflicts[:3], ", "), len(conflicts)-3)
		}
		return nil, fmt.Errorf("%w: duplicate user emails: %s", domain.ErrValidation, msg)
	}
	return unique, nil
}

// sortEntries orders entries by external id so that the serialised
// requests, and therefore the sync hash, do not depend on directory order.
func sortEntries(groups []domain.GroupEntry, users []domain.UserEntry) {
	sort.SliceStable(groups, func(i, j int) bool {
		if groups[i].ExternalID != groups[j].ExternalID {
			return groups[i].ExternalID < groups[j].ExternalID
		}
		return groups[i].ReferenceID < groups[j].ReferenceID
	})
	sort.SliceStable(users, func(i, j int) bool {
		if users[i].ExternalID != users[j].ExternalID {
			return users[i].ExternalID < users[j].ExternalID
		}
		return users[i].Email < users[j].Email
	})
}
