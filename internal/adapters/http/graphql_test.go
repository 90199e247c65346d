package http_test

import (
	"encoding/json"
	"testing"

	"github.com/nlzhang/geopin/internal/core/domain"
)

type gqlResult struct {
	Data   map[string]json.RawMessage `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

func runGQL(t *testing.T, body string) gqlResult {
	t.Helper()
	deps, _ := makeDeps()
	app := setupApp(deps)

	status, raw := doJSON(t, app, "POST", "/graphql", body)
	if status != 200 {
		t.Fatalf("expected 200, got %d: %s", status, raw)
	}
	var result gqlResult
	if err := json.Unmarshal(raw, &result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	return result
}

func TestGraphQL_SessionQuery(t *testing.T) {
	result := runGQL(t, `{"query": "{ session { state } }"}`)
	if len(result.Errors) != 0 {
		t.Fatalf("unexpected errors: %+v", result.Errors)
	}

	var session struct {
		State string `json:"state"`
	}
	json.Unmarshal(result.Data["session"], &session)
	if session.State != "idle" {
		t.Errorf("expected idle, got %s", session.State)
	}
}

func TestGraphQL_StartAndStopMutations(t *testing.T) {
	deps, helper := makeDeps()
	app := setupApp(deps)

	status, raw := doJSON(t, app, "POST", "/graphql",
		`{"query": "mutation { startSpoofingAt(lat: 31.2304, lon: 121.4737) { state display_point { lat } true_point { lat } } }"}`)
	if status != 200 {
		t.Fatalf("expected 200, got %d", status)
	}

	var result gqlResult
	json.Unmarshal(raw, &result)
	if len(result.Errors) != 0 {
		t.Fatalf("unexpected errors: %+v", result.Errors)
	}

	var session struct {
		State        string `json:"state"`
		DisplayPoint struct {
			Lat float64 `json:"lat"`
		} `json:"display_point"`
		TruePoint struct {
			Lat float64 `json:"lat"`
		} `json:"true_point"`
	}
	json.Unmarshal(result.Data["startSpoofingAt"], &session)
	if session.State != "running" {
		t.Fatalf("expected running, got %s", session.State)
	}
	if session.DisplayPoint.Lat != 31.2304 {
		t.Errorf("expected display lat 31.2304, got %f", session.DisplayPoint.Lat)
	}
	if session.TruePoint.Lat == session.DisplayPoint.Lat {
		t.Error("expected distinct true point")
	}
	if helper.beginCount() != 1 {
		t.Errorf("expected 1 begin, got %d", helper.beginCount())
	}

	_, raw = doJSON(t, app, "POST", "/graphql",
		`{"query": "mutation { stopSpoofing { state } }"}`)
	json.Unmarshal(raw, &result)
	var stopped struct {
		State string `json:"state"`
	}
	json.Unmarshal(result.Data["stopSpoofing"], &stopped)
	if stopped.State != "idle" {
		t.Errorf("expected idle after stop, got %s", stopped.State)
	}
}

func TestGraphQL_StartWithoutSelectionErrors(t *testing.T) {
	result := runGQL(t, `{"query": "mutation { startSpoofing { state } }"}`)
	if len(result.Errors) == 0 {
		t.Fatal("expected an error for start without a selection")
	}
}

func TestGraphQL_RecordAndListHistory(t *testing.T) {
	deps, _ := makeDeps()
	app := setupApp(deps)

	_, raw := doJSON(t, app, "POST", "/graphql",
		`{"query": "mutation { recordSearch(query: \"temple\", lat: 31.2234, lon: 121.4486) { id query } }"}`)
	var result gqlResult
	json.Unmarshal(raw, &result)
	if len(result.Errors) != 0 {
		t.Fatalf("unexpected errors: %+v", result.Errors)
	}

	var entry domain.QueryHistoryEntry
	json.Unmarshal(result.Data["recordSearch"], &entry)
	if entry.ID == "" || entry.Query != "temple" {
		t.Errorf("unexpected entry: %+v", entry)
	}

	_, raw = doJSON(t, app, "POST", "/graphql", `{"query": "{ history { query lat lon } }"}`)
	json.Unmarshal(raw, &result)

	var entries []struct {
		Query string `json:"query"`
	}
	json.Unmarshal(result.Data["history"], &entries)
	if len(entries) != 1 || entries[0].Query != "temple" {
		t.Errorf("expected the recorded entry, got %+v", entries)
	}
}

func TestGraphQL_TransformQuery(t *testing.T) {
	result := runGQL(t,
		`{"query": "{ transform(lat: 31.2304, lon: 121.4737, to: \"true\") { lat lon space } }"}`)
	if len(result.Errors) != 0 {
		t.Fatalf("unexpected errors: %+v", result.Errors)
	}

	var out struct {
		Lat   float64 `json:"lat"`
		Lon   float64 `json:"lon"`
		Space string  `json:"space"`
	}
	json.Unmarshal(result.Data["transform"], &out)
	if out.Space != "true" {
		t.Errorf("expected true space, got %s", out.Space)
	}
	if out.Lat == 31.2304 {
		t.Error("expected a shifted latitude")
	}
}

func TestGraphQL_MalformedQuery(t *testing.T) {
	result := runGQL(t, `{"query": "{ nonsense }"}`)
	if len(result.Errors) == 0 {
		t.Fatal("expected errors for an unknown field")
	}
}
