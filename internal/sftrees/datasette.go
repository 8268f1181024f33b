package sftrees

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"treeradius/internal/geo"
)

const DefaultBaseURL = "https://san-francisco.datasettes.com/sf-trees"

const DefaultPageSize = 1000
const MinPageSize = 100
const MaxPageSize = 1000

// Columns selected from the Street_Tree_List table, in order. Row cells
// are addressed by position, so this order is load-bearing.
const treeColumns = "rowid, TreeID, qLegalStatus, qSpecies, qAddress, SiteOrder, qSiteInfo, PlantType, " +
	"qCaretaker, qCareAssistant, PlantDate, DBH, PlotSize, PermitNotes, XCoord, YCoord, Latitude, Longitude, Location"

const (
	colTreeID      = 1
	colLegalStatus = 2
	colSpecies     = 3
	colAddress     = 4
	colSiteInfo    = 6
	colPlantType   = 7
	colCaretaker   = 8
	colPlantDate   = 10
	colDBH         = 11
	colPlotSize    = 12
	colLatitude    = 16
	colLongitude   = 17
	columnCount    = 19
)

// Tree is one street tree row. Immutable once fetched.
type Tree struct {
	ID          int64
	LegalStatus string
	Species     string
	Address     string
	SiteInfo    string
	PlantType   string
	Caretaker   string
	PlantDate   string
	DBH         string
	PlotSize    string
	Coordinate  geo.Coordinate
}

// FetchResult carries all parseable trees plus the number of rows that
// were dropped for missing or invalid coordinates.
type FetchResult struct {
	Trees       []Tree
	SkippedRows int
}

// Source yields the full street tree list.
type Source interface {
	FetchAll(ctx context.Context) (*FetchResult, error)
}

// Client pages through the sf-trees datasette via SQL-over-HTTP.
type Client struct {
	BaseURL    string
	PageSize   int
	HTTPClient *http.Client
	Timeout    time.Duration
}

// SourceError means the tree dataset could not be fetched or decoded.
type SourceError struct {
	Err error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("fetch tree dataset: %v", e.Err)
}

func (e *SourceError) Unwrap() error { return e.Err }

type datasettePage struct {
	Rows [][]json.RawMessage `json:"rows"`
}

// FetchAll pages through Street_Tree_List sequentially until an empty
// page. Rows without a usable coordinate are skipped and counted, never
// fatal; request or decode failures abort with a *SourceError.
func (c *Client) FetchAll(ctx context.Context) (*FetchResult, error) {
	pageSize := c.effectivePageSize()
	result := &FetchResult{}

	for offset := 0; ; offset += pageSize {
		rows, err := c.fetchPage(ctx, pageSize, offset)
		if err != nil {
			return nil, err
		}
		if len(rows) == 0 {
			break
		}

		for _, row := range rows {
			tree, ok := parseTree(row)
			if !ok {
				result.SkippedRows++
				continue
			}
			result.Trees = append(result.Trees, tree)
		}

		log.Debug().
			Int("offset", offset).
			Int("rows", len(rows)).
			Int("total", len(result.Trees)).
			Msg("tree page fetched")

		if len(rows) < pageSize {
			break
		}
	}

	if result.SkippedRows > 0 {
		log.Debug().Int("skipped", result.SkippedRows).Msg("rows without usable coordinates")
	}

	return result, nil
}

func (c *Client) fetchPage(ctx context.Context, pageSize, offset int) ([][]json.RawMessage, error) {
	query := fmt.Sprintf("select %s from Street_Tree_List order by rowid limit %d", treeColumns, pageSize)
	if offset > 0 {
		query += fmt.Sprintf(" offset %d", offset)
	}

	params := url.Values{}
	params.Set("sql", query)
	endpoint := strings.TrimRight(c.effectiveBaseURL(), "/") + ".json?" + params.Encode()

	ctx, cancel := context.WithTimeout(ctx, c.effectiveTimeout())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, &SourceError{Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return nil, &SourceError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &SourceError{
			Err: fmt.Errorf("dataset status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))),
		}
	}

	var page datasettePage
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, &SourceError{Err: fmt.Errorf("decode dataset response: %w", err)}
	}

	return page.Rows, nil
}

func parseTree(row []json.RawMessage) (Tree, bool) {
	if len(row) < columnCount {
		return Tree{}, false
	}

	lat, ok := cellFloat(row[colLatitude])
	if !ok {
		return Tree{}, false
	}
	lon, ok := cellFloat(row[colLongitude])
	if !ok {
		return Tree{}, false
	}
	coord := geo.Coordinate{Lat: lat, Lon: lon}
	if !coord.Valid() {
		return Tree{}, false
	}

	id, _ := cellInt(row[colTreeID])
	return Tree{
		ID:          id,
		LegalStatus: cellString(row[colLegalStatus]),
		Species:     cellString(row[colSpecies]),
		Address:     cellString(row[colAddress]),
		SiteInfo:    cellString(row[colSiteInfo]),
		PlantType:   cellString(row[colPlantType]),
		Caretaker:   cellString(row[colCaretaker]),
		PlantDate:   cellString(row[colPlantDate]),
		DBH:         cellString(row[colDBH]),
		PlotSize:    cellString(row[colPlotSize]),
		Coordinate:  coord,
	}, true
}

// cellFloat accepts both JSON numbers and numeric strings; the dataset
// stores coordinates inconsistently across rows.
func cellFloat(raw json.RawMessage) (float64, bool) {
	if len(raw) == 0 || string(raw) == "null" {
		return 0, false
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f, true
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

func cellInt(raw json.RawMessage) (int64, bool) {
	f, ok := cellFloat(raw)
	if !ok {
		return 0, false
	}
	return int64(f), true
}

func cellString(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return strings.Trim(string(raw), `"`)
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return &http.Client{Timeout: c.effectiveTimeout()}
}

func (c *Client) effectiveTimeout() time.Duration {
	if c.Timeout > 0 {
		return c.Timeout
	}
	return 15 * time.Second
}

func (c *Client) effectiveBaseURL() string {
	if c.BaseURL != "" {
		return c.BaseURL
	}
	return DefaultBaseURL
}

func (c *Client) effectivePageSize() int {
	size := c.PageSize
	if size == 0 {
		size = DefaultPageSize
	}
	if size < MinPageSize {
		size = MinPageSize
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}
	return size
}
