package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sync"
	"time"

	"revclean/internal/apigee"
)

func revKey(kind apigee.Kind, name string, rev int) string {
	return fmt.Sprintf("%s/%s/%d", kind, name, rev)
}

func entityKey(kind apigee.Kind, name string) string {
	return fmt.Sprintf("%s/%s", kind, name)
}

// fakeAPI is an in-memory management API. Successful deletes remove the
// revision so repeated runs observe the new state.
type fakeAPI struct {
	mu sync.Mutex

	entities  map[apigee.Kind][]string
	listErr   map[apigee.Kind]error
	revisions map[string][]int
	revErr    map[string]error
	deployed  map[string]bool
	statusErr map[string]error
	deleteErr map[string]error

	deleteDelay time.Duration

	revisionQueries []string
	statusQueries   []string
	deletes         []string
	inFlight        int
	maxInFlight     int
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		entities:  map[apigee.Kind][]string{},
		listErr:   map[apigee.Kind]error{},
		revisions: map[string][]int{},
		revErr:    map[string]error{},
		deployed:  map[string]bool{},
		statusErr: map[string]error{},
		deleteErr: map[string]error{},
	}
}

func (f *fakeAPI) addEntity(kind apigee.Kind, name string, revs ...int) {
	f.entities[kind] = append(f.entities[kind], name)
	f.revisions[entityKey(kind, name)] = revs
}

func (f *fakeAPI) ListEntities(ctx context.Context, kind apigee.Kind) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.listErr[kind]; err != nil {
		return nil, err
	}
	return slices.Clone(f.entities[kind]), nil
}

func (f *fakeAPI) ListRevisions(ctx context.Context, kind apigee.Kind, name string) ([]int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := entityKey(kind, name)
	f.revisionQueries = append(f.revisionQueries, key)
	if err := f.revErr[key]; err != nil {
		return nil, err
	}
	return slices.Clone(f.revisions[key]), nil
}

func (f *fakeAPI) DeploymentStatus(ctx context.Context, kind apigee.Kind, name string, revision int) (apigee.DeploymentStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := revKey(kind, name, revision)
	f.statusQueries = append(f.statusQueries, key)
	if err := f.statusErr[key]; err != nil {
		return apigee.DeploymentStatus{}, err
	}
	if f.deployed[key] {
		return apigee.DeploymentStatus{Deployments: []json.RawMessage{json.RawMessage(`{"environment":"prod"}`)}}, nil
	}
	return apigee.DeploymentStatus{}, nil
}

func (f *fakeAPI) DeleteRevision(ctx context.Context, kind apigee.Kind, name string, revision int) error {
	f.mu.Lock()
	f.inFlight++
	if f.inFlight > f.maxInFlight {
		f.maxInFlight = f.inFlight
	}
	delay := f.deleteDelay
	f.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.inFlight--
	key := revKey(kind, name, revision)
	if err := f.deleteErr[key]; err != nil {
		return err
	}
	f.deletes = append(f.deletes, key)
	ek := entityKey(kind, name)
	f.revisions[ek] = slices.DeleteFunc(f.revisions[ek], func(r int) bool { return r == revision })
	return nil
}

func (f *fakeAPI) statusQueried(kind apigee.Kind, name string, rev int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Contains(f.statusQueries, revKey(kind, name, rev))
}
