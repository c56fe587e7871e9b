package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/desertthunder/tunesync/internal/shared"
)

func testTidal(t *testing.T, baseURL string) *TidalService {
	t.Helper()
	creds := shared.ServiceCredentials{
		ClientID:    "test_client_id",
		RedirectURI: "http://127.0.0.1:8888/callback",
	}
	srv, err := NewTidalService(creds, seededStore(t), nil, WithTidalBaseURL(baseURL))
	if err != nil {
		t.Fatalf("failed to create service: %v", err)
	}
	return srv
}

func tidalProfileHandler(w http.ResponseWriter) {
	fmt.Fprint(w, `{"data":{"id":"user1","attributes":{"country":"DE"}}}`)
}

func TestNewTidalService(t *testing.T) {
	t.Run("With Valid Credentials", func(t *testing.T) {
		srv := testTidal(t, tidalBaseURL)
		if srv.Name() != "Tidal" {
			t.Errorf("expected service name 'Tidal', got %s", srv.Name())
		}
	})

	t.Run("Missing Client ID", func(t *testing.T) {
		_, err := NewTidalService(shared.ServiceCredentials{}, emptyStore(t), nil)
		if err == nil {
			t.Error("expected error for missing client_id")
		}
	})

	t.Run("Auth URL Uses PKCE", func(t *testing.T) {
		creds := shared.ServiceCredentials{ClientID: "test_client_id"}
		srv, err := NewTidalService(creds, emptyStore(t), nil)
		if err != nil {
			t.Fatalf("failed to create service: %v", err)
		}

		authURL, err := srv.Authenticate(context.Background())
		if err != nil {
			t.Fatalf("authenticate failed: %v", err)
		}
		if !strings.Contains(authURL, "code_challenge_method=S256") {
			t.Errorf("expected PKCE challenge in auth URL, got %s", authURL)
		}
		if strings.Contains(authURL, "client_secret") {
			t.Error("public client must not leak a secret in the auth URL")
		}
	})
}

func TestParseISODuration(t *testing.T) {
	cases := []struct {
		input string
		want  int
	}{
		{"PT3M20S", 200},
		{"PT45S", 45},
		{"PT1H2M3S", 3723},
		{"PT4M", 240},
		{"", 0},
		{"3:20", 0},
		{"PTXS", 0},
	}

	for _, tc := range cases {
		if got := parseISODuration(tc.input); got != tc.want {
			t.Errorf("parseISODuration(%q) = %d, want %d", tc.input, got, tc.want)
		}
	}
}

func TestTidalGetPlaylist(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/users/me":
			tidalProfileHandler(w)
		case "/playlists/pl1":
			if cc := r.URL.Query().Get("countryCode"); cc != "DE" {
				t.Errorf("expected countryCode=DE, got %s", cc)
			}
			fmt.Fprint(w, `{"data":{"id":"pl1","type":"playlists","attributes":{"name":"Mix","numberOfItems":2,"imageLinks":[{"href":"img-big","meta":{"width":640,"height":640}},{"href":"img-small","meta":{"width":80,"height":80}}]}}}`)
		case "/playlists/pl1/relationships/items":
			// Included deliberately out of item order
			fmt.Fprint(w, `{
				"data":[{"id":"t2","type":"tracks"},{"id":"t1","type":"tracks"}],
				"included":[
					{"id":"t1","type":"tracks","attributes":{"title":"First Included","isrc":"ISRC1","duration":"PT3M"},"relationships":{"artists":{"data":[{"id":"a1","type":"artists"}]}}},
					{"id":"t2","type":"tracks","attributes":{"title":"Second Included","duration":"PT2M30S"},"relationships":{"artists":{"data":[{"id":"a2","type":"artists"},{"id":"a1","type":"artists"}]}}},
					{"id":"a1","type":"artists","attributes":{"name":"Artist One"}},
					{"id":"a2","type":"artists","attributes":{"name":"Artist Two"}}
				],
				"links":{}
			}`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	srv := testTidal(t, server.URL)

	playlist, err := srv.GetPlaylist(context.Background(), "pl1")
	if err != nil {
		t.Fatalf("failed to get playlist: %v", err)
	}

	if playlist.CoverImage != "img-big" {
		t.Errorf("expected largest cover image, got %s", playlist.CoverImage)
	}
	if len(playlist.Songs) != 2 {
		t.Fatalf("expected 2 songs, got %d", len(playlist.Songs))
	}

	// Order must follow the relationship data, not the included array
	if playlist.Songs[0].ServiceID != "t2" || playlist.Songs[1].ServiceID != "t1" {
		t.Errorf("item order not preserved: %+v", playlist.Songs)
	}
	if playlist.Songs[0].Duration != 150 {
		t.Errorf("expected parsed ISO duration 150s, got %d", playlist.Songs[0].Duration)
	}

	artists := playlist.Songs[0].Artists
	if len(artists) != 2 || artists[0] != "Artist Two" || artists[1] != "Artist One" {
		t.Errorf("artist credit order not preserved: %v", artists)
	}
}

func TestTidalGetAllPlaylists(t *testing.T) {
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/users/me":
			tidalProfileHandler(w)
		case "/playlists":
			if owner := r.URL.Query().Get("filter[r.owners.id]"); owner != "user1" {
				t.Errorf("expected owner filter user1, got %s", owner)
			}
			if r.URL.Query().Get("page[cursor]") == "c2" {
				fmt.Fprint(w, `{"data":[{"id":"pl2","type":"playlists","attributes":{"name":"Second"}}],"links":{}}`)
				return
			}
			// Relative next link, as the API emits them
			fmt.Fprint(w, `{"data":[{"id":"pl1","type":"playlists","attributes":{"name":"First","accessType":"PUBLIC"}}],"links":{"next":"/playlists?page%5Bcursor%5D=c2"}}`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	srv := testTidal(t, server.URL)

	playlists, err := srv.GetAllPlaylists(context.Background())
	if err != nil {
		t.Fatalf("failed to get playlists: %v", err)
	}
	if len(playlists) != 2 {
		t.Fatalf("expected 2 playlists across pages, got %d", len(playlists))
	}
	if playlists[0].Name != "First" || playlists[1].Name != "Second" {
		t.Errorf("unexpected playlist order: %v", playlists)
	}
	if !playlists[0].Public {
		t.Error("PUBLIC access type should map to a public playlist")
	}
}

func TestTidalSearchByISRC(t *testing.T) {
	t.Run("Found", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Path {
			case "/users/me":
				tidalProfileHandler(w)
			case "/tracks":
				if isrc := r.URL.Query().Get("filter[isrc]"); isrc != "ISRC1" {
					t.Errorf("unexpected isrc filter: %s", isrc)
				}
				fmt.Fprint(w, `{"data":[{"id":"t1","type":"tracks","attributes":{"title":"Found","isrc":"ISRC1","duration":"PT3M"},"relationships":{"artists":{"data":[{"id":"a1","type":"artists"}]}}}],"included":[{"id":"a1","type":"artists","attributes":{"name":"Artist"}}]}`)
			default:
				http.NotFound(w, r)
			}
		}))
		defer server.Close()

		srv := testTidal(t, server.URL)

		song, err := srv.SearchByISRC(context.Background(), "ISRC1")
		if err != nil {
			t.Fatalf("search failed: %v", err)
		}
		if song == nil || song.ServiceID != "t1" || song.Artists[0] != "Artist" {
			t.Fatalf("unexpected song: %+v", song)
		}
	})

	t.Run("Not In Region", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/users/me" {
				tidalProfileHandler(w)
				return
			}
			http.NotFound(w, r)
		}))
		defer server.Close()

		srv := testTidal(t, server.URL)

		_, err := srv.SearchByISRC(context.Background(), "ISRC1")
		if !errors.Is(err, shared.ErrTrackNotInRegion) {
			t.Errorf("expected ErrTrackNotInRegion for 404, got %v", err)
		}
	})

	t.Run("No Hit", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/users/me" {
				tidalProfileHandler(w)
				return
			}
			fmt.Fprint(w, `{"data":[]}`)
		}))
		defer server.Close()

		srv := testTidal(t, server.URL)

		song, err := srv.SearchByISRC(context.Background(), "ISRC1")
		if err != nil {
			t.Fatalf("search failed: %v", err)
		}
		if song != nil {
			t.Errorf("expected nil for empty data, got %+v", song)
		}
	})
}

func TestTidalAddTracks(t *testing.T) {
	t.Run("Posts JSON API Refs In Order", func(t *testing.T) {
		var gotRefs []tidalRef
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/users/me" {
				tidalProfileHandler(w)
				return
			}
			var body struct {
				Data []tidalRef `json:"data"`
			}
			json.NewDecoder(r.Body).Decode(&body)
			gotRefs = body.Data
			w.WriteHeader(http.StatusCreated)
			fmt.Fprint(w, `{}`)
		}))
		defer server.Close()

		srv := testTidal(t, server.URL)

		if err := srv.AddTracks(context.Background(), "pl1", []string{"t1", "t2"}); err != nil {
			t.Fatalf("add failed: %v", err)
		}
		if len(gotRefs) != 2 || gotRefs[0].ID != "t1" || gotRefs[1].ID != "t2" {
			t.Errorf("unexpected refs: %v", gotRefs)
		}
		if gotRefs[0].Type != "tracks" {
			t.Errorf("expected tracks resource type, got %s", gotRefs[0].Type)
		}
	})

	t.Run("Rejects Oversized Batches", func(t *testing.T) {
		srv := testTidal(t, tidalBaseURL)

		ids := make([]string, tidalBatchLimit+1)
		for i := range ids {
			ids[i] = fmt.Sprintf("t%d", i)
		}
		if err := srv.AddTracks(context.Background(), "pl1", ids); err == nil {
			t.Error("expected error for batch above the limit")
		}
	})
}

func TestTidalSearchTrack(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/users/me" {
			tidalProfileHandler(w)
			return
		}
		if !strings.HasPrefix(r.URL.Path, "/searchResults/") {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, `{
			"data":[{"id":"good","type":"tracks"},{"id":"bad","type":"tracks"}],
			"included":[
				{"id":"good","type":"tracks","attributes":{"title":"Midnight City"},"relationships":{"artists":{"data":[{"id":"a1","type":"artists"}]}}},
				{"id":"bad","type":"tracks","attributes":{"title":"Something Else"},"relationships":{"artists":{"data":[{"id":"a2","type":"artists"}]}}},
				{"id":"a1","type":"artists","attributes":{"name":"M83"}},
				{"id":"a2","type":"artists","attributes":{"name":"Nobody"}}
			]
		}`)
	}))
	defer server.Close()

	srv := testTidal(t, server.URL)

	song, err := srv.SearchTrack(context.Background(), "Midnight City", "M83")
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if song == nil || song.ServiceID != "good" {
		t.Fatalf("expected best fuzzy match, got %+v", song)
	}
}

func TestTidalBatchLimit(t *testing.T) {
	srv := testTidal(t, tidalBaseURL)
	if srv.BatchLimit() != tidalBatchLimit {
		t.Errorf("expected batch limit %d, got %d", tidalBatchLimit, srv.BatchLimit())
	}
}
