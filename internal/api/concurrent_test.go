package api

import (
	"fmt"
	"net/http"
	"sync"
	"testing"

	"github.com/TimurManjosov/sprida/internal/snapshot"
)

func TestConcurrent_UpsertsAndAssignments(t *testing.T) {
	_, _, handler := newTestServer(t)

	const writers = 10
	const readers = 20

	var wg sync.WaitGroup
	errs := make(chan error, writers+readers)

	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			body := `{"groups":[{"name":"a","weight":1},{"name":"b","weight":3}]}`
			rr := doRequest(handler, http.MethodPut, fmt.Sprintf("/v1/splits/split_%d", i), body, true)
			if rr.Code != http.StatusOK {
				errs <- fmt.Errorf("upsert %d: status %d", i, rr.Code)
			}
		}(i)
	}

	for i := 0; i < readers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rr := doRequest(handler, http.MethodPost, "/v1/assign", fmt.Sprintf(`{"id":"%08x"}`, i*7919), false)
			if rr.Code != http.StatusOK {
				errs <- fmt.Errorf("assign %d: status %d", i, rr.Code)
			}
		}(i)
	}

	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}

	if got := len(snapshot.Load().Splits); got != writers {
		t.Errorf("Expected %d splits after concurrent upserts, got %d", writers, got)
	}
}
