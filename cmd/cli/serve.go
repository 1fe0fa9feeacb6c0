package cli

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"ledgerengine/core"
)

// queryResponse is the wire shape the HTTP query endpoint returns.
type queryResponse struct {
	Results []queryResultView `json:"results"`
	Skipped int               `json:"skipped"`
}

type queryResultView struct {
	Key  string `json:"key_hex"`
	Kind int    `json:"kind"`
	Item string `json:"item_hex,omitempty"`
}

func handleHTTPQuery(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(chi.URLParam(r, "*"), "/")
	var segments []string
	if path != "" {
		segments = strings.Split(path, "/")
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	results, skipped, err := backend.Query(r.Context(), core.PathQuery{Path: segments, Limit: limit}, nil)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	resp := queryResponse{Skipped: skipped}
	for _, res := range results {
		resp.Results = append(resp.Results, queryResultView{
			Key:  hex.EncodeToString(res.Key),
			Kind: int(res.Element.Kind),
			Item: hex.EncodeToString(res.Element.ItemBytes),
		})
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func handleHTTPRootHash(w http.ResponseWriter, r *http.Request) {
	hash, err := backend.RootHash(r.Context(), nil)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"root_hash": hex.EncodeToString(hash)})
}

func serveHandle(cmd *cobra.Command, args []string) error {
	addr, _ := cmd.Flags().GetString("addr")

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Get("/root-hash", handleHTTPRootHash)
	r.Get("/query/*", handleHTTPQuery)

	logrus.WithField("addr", addr).Info("serving query API")
	fmt.Fprintf(cmd.OutOrStdout(), "listening on %s\n", addr)
	return http.ListenAndServe(addr, r)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "expose the backend's queries and root hash over HTTP",
	RunE:  serveHandle,
}

func init() {
	serveCmd.Flags().String("addr", ":8090", "listen address")
}
