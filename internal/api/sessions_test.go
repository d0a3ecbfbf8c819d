package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patchlink/patchlink-go/internal/config"
	"github.com/patchlink/patchlink-go/internal/fixture"
	"github.com/patchlink/patchlink-go/internal/services/match"
	"github.com/patchlink/patchlink-go/internal/services/pubsub"
)

func testConfig() *config.Config {
	return &config.Config{
		Port:          "8080",
		Env:           "development",
		SequenceStart: 1,
		MA3TriggerOn:  255,
		MA3TriggerOff: 0,
		MA3InFrom:     0,
		MA3InTo:       255,
		MA3OutFrom:    0,
		MA3OutTo:      100,
		MA3Resolution: "16bit",
	}
}

func testLibrary() *match.Registry {
	p := &fixture.Profile{Name: "LED PAR", Source: fixture.SourceExternal}
	p.AddMode(&fixture.Mode{
		Name:          "Standard",
		Channels:      map[string]int{"Dim": 1, "R": 2, "G": 3, "B": 4},
		TotalChannels: 4,
	})
	reg := match.NewRegistry()
	reg.Add("LED PAR", p)
	return reg
}

func newTestServer(t *testing.T) (*Handler, *httptest.Server) {
	t.Helper()
	h := New(testConfig(), nil, nil, pubsub.New(), testLibrary())
	router := chi.NewRouter()
	h.Routes(router)
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return h, srv
}

// uploadShow posts a multipart show file and returns the decoded
// session response.
func uploadShow(t *testing.T, srv *httptest.Server, filename, contents string) map[string]interface{} {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write([]byte(contents))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	resp, err := http.Post(srv.URL+"/api/sessions/", writer.FormDataContentType(), &body)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var session map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&session))
	return session
}

func postJSON(t *testing.T, url string, payload interface{}) *http.Response {
	t.Helper()
	var body bytes.Buffer
	if payload != nil {
		require.NoError(t, json.NewEncoder(&body).Encode(payload))
	}
	resp, err := http.Post(url, "application/json", &body)
	require.NoError(t, err)
	return resp
}

const showCSV = "name,type,mode,universe,address\n" +
	"PAR1,LED PAR,Standard,1,1\n" +
	"PAR2,LED PAR,Standard,1,10\n"

func TestCreateSession_CSV(t *testing.T) {
	_, srv := newTestServer(t)

	session := uploadShow(t, srv, "rig.csv", showCSV)

	assert.Equal(t, "rig.csv", session["name"])
	assert.Equal(t, "csv", session["source"])
	assert.NotEmpty(t, session["id"])
	fixtures := session["fixtures"].([]interface{})
	assert.Len(t, fixtures, 2)
}

func TestCreateSession_MA3XML(t *testing.T) {
	_, srv := newTestServer(t)

	session := uploadShow(t, srv, "patch.xml",
		`<GMA3><Fixture Name="Spot 1" Mode="LED PAR.DMXModes.Standard" FID="1" Patch="1.001"/></GMA3>`)

	assert.Equal(t, "ma3", session["source"])
	assert.Len(t, session["fixtures"].([]interface{}), 1)
}

func TestCreateSession_UnsupportedExtension(t *testing.T) {
	_, srv := newTestServer(t)

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, _ := writer.CreateFormFile("file", "rig.pdf")
	_, _ = part.Write([]byte("not a show"))
	_ = writer.Close()

	resp, err := http.Post(srv.URL+"/api/sessions/", writer.FormDataContentType(), &body)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCreateSession_MissingFile(t *testing.T) {
	_, srv := newTestServer(t)

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	require.NoError(t, writer.WriteField("name", "empty"))
	_ = writer.Close()

	resp, err := http.Post(srv.URL+"/api/sessions/", writer.FormDataContentType(), &body)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetSession_Unknown(t *testing.T) {
	_, srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/sessions/nope/")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSessionWorkflow(t *testing.T) {
	_, srv := newTestServer(t)
	session := uploadShow(t, srv, "rig.csv", showCSV)
	base := fmt.Sprintf("%s/api/sessions/%s", srv.URL, session["id"])

	// Match every fixture against the library.
	resp := postJSON(t, base+"/match", nil)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var matchResult struct {
		Summary match.Summary `json:"summary"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&matchResult))
	assert.Equal(t, 2, matchResult.Summary.Matched)

	// Select attributes for the matched type.
	resp = postJSON(t, base+"/selections", map[string][]string{"LED PAR": {"Dim", "R"}})
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// Compute addresses.
	resp = postJSON(t, base+"/addresses", nil)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var addrResult struct {
		Conflicts []interface{} `json:"conflicts"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&addrResult))
	assert.Empty(t, addrResult.Conflicts)

	// Assign sequences starting at 5.
	start := 5
	resp = postJSON(t, base+"/sequences", map[string]*int{"start": &start})
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var seqResult struct {
		Start int `json:"start"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&seqResult))
	assert.Equal(t, 5, seqResult.Start)

	// Export as CSV.
	resp, err := http.Get(base + "/export?format=csv")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "patch.csv")
	var out bytes.Buffer
	_, _ = out.ReadFrom(resp.Body)
	lines := strings.Split(out.String(), "\n")
	require.Len(t, lines, 5)
	assert.Equal(t, "fixture_name,fixture_id,attribute,address,sequence,role,master_fixture_id", lines[0])
	assert.Equal(t, "PAR1,1,Dim,1.001,5,unassigned,", lines[1])
}

func TestOverrideMatch(t *testing.T) {
	_, srv := newTestServer(t)
	session := uploadShow(t, srv, "rig.csv", "name,type,mode,universe,address\nMystery,Unknown Thing,?,1,1\n")
	base := fmt.Sprintf("%s/api/sessions/%s", srv.URL, session["id"])

	resp := postJSON(t, base+"/match/1", map[string]string{"profile": "LED PAR", "mode": "Standard"})
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var f map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&f))
	assert.Equal(t, "matched", f["matchStatus"])
}

func TestOverrideMatch_UnknownProfile(t *testing.T) {
	_, srv := newTestServer(t)
	session := uploadShow(t, srv, "rig.csv", showCSV)
	base := fmt.Sprintf("%s/api/sessions/%s", srv.URL, session["id"])

	resp := postJSON(t, base+"/match/1", map[string]string{"profile": "No Such", "mode": "Standard"})
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestOverrideMatch_UnknownMode(t *testing.T) {
	_, srv := newTestServer(t)
	session := uploadShow(t, srv, "rig.csv", showCSV)
	base := fmt.Sprintf("%s/api/sessions/%s", srv.URL, session["id"])

	resp := postJSON(t, base+"/match/1", map[string]string{"profile": "LED PAR", "mode": "No Such"})
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestLinkAndUnlink(t *testing.T) {
	_, srv := newTestServer(t)
	session := uploadShow(t, srv, "rig.csv", showCSV)
	base := fmt.Sprintf("%s/api/sessions/%s", srv.URL, session["id"])

	resp := postJSON(t, base+"/links", map[string]int{"masterId": 1, "remoteId": 2})
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// Linking a fixture to itself is rejected.
	resp = postJSON(t, base+"/links", map[string]int{"masterId": 1, "remoteId": 1})
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	req, err := http.NewRequest(http.MethodDelete, base+"/links/2", nil)
	require.NoError(t, err)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestExport_UnknownFormat(t *testing.T) {
	_, srv := newTestServer(t)
	session := uploadShow(t, srv, "rig.csv", showCSV)

	resp, err := http.Get(fmt.Sprintf("%s/api/sessions/%s/export?format=pdf", srv.URL, session["id"]))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestExport_NoMatchedFixtures(t *testing.T) {
	_, srv := newTestServer(t)
	session := uploadShow(t, srv, "rig.csv", showCSV)

	// Text export before matching has nothing to render.
	resp, err := http.Get(fmt.Sprintf("%s/api/sessions/%s/export?format=text", srv.URL, session["id"]))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestDeleteSession(t *testing.T) {
	h, srv := newTestServer(t)
	session := uploadShow(t, srv, "rig.csv", showCSV)
	id := session["id"].(string)

	req, err := http.NewRequest(http.MethodDelete, fmt.Sprintf("%s/api/sessions/%s/", srv.URL, id), nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	_, err = h.sessions.Get(id)
	assert.Error(t, err)
}
