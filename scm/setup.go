package scm

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strconv"

	"github.com/petal-labs/mcp-oracle-scm/tool"
)

const (
	locationsJSONFile = "all_locations.json"
	locationsCSVFile  = "all_locations.csv"
	setupExportsDir   = "setup_exports"
)

// LocationsResult is the output of fetch_fusion_locations.
type LocationsResult struct {
	Message              string  `json:"message"`
	TotalRecords         int     `json:"total_records"`
	JSONFile             string  `json:"json_file"`
	CSVFile              string  `json:"csv_file"`
	ExecutionTimeSeconds float64 `json:"execution_time_seconds"`
}

// FetchLocations downloads every HCM location and saves them under the
// output directory as JSON and CSV. The CSV columns are the sorted keys of
// the first location; it is not written when there are no locations, and
// CSVFile is then empty.
func (s *Service) FetchLocations(ctx context.Context, _ tool.Arguments) (*LocationsResult, error) {
	started := s.now()
	locations, err := s.fusion.ListLocations(ctx)
	if err != nil {
		return nil, err
	}
	if locations == nil {
		locations = []map[string]any{}
	}
	if err := os.MkdirAll(s.outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	jsonPath := filepath.Join(s.outputDir, locationsJSONFile)
	encoded, err := json.MarshalIndent(locations, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode locations: %w", err)
	}
	if err := os.WriteFile(jsonPath, encoded, 0o644); err != nil {
		return nil, fmt.Errorf("write locations json: %w", err)
	}

	csvPath := filepath.Join(s.outputDir, locationsCSVFile)
	if len(locations) > 0 {
		if err := writeLocationsCSV(csvPath, locations); err != nil {
			return nil, err
		}
	} else {
		// A CSV left by an earlier run would no longer match the JSON.
		if err := os.Remove(csvPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("remove stale locations csv: %w", err)
		}
		csvPath = ""
	}

	out := &LocationsResult{
		Message:              "Fusion Locations fetched successfully",
		TotalRecords:         len(locations),
		JSONFile:             jsonPath,
		CSVFile:              csvPath,
		ExecutionTimeSeconds: s.elapsedSeconds(started),
	}
	s.logger.Info("fusion locations saved", "records", out.TotalRecords, "json_file", jsonPath, "csv_file", csvPath)
	return out, nil
}

func writeLocationsCSV(path string, locations []map[string]any) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create locations csv: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close locations csv: %w", cerr)
		}
	}()

	header := slices.Sorted(maps.Keys(locations[0]))
	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return fmt.Errorf("write locations csv: %w", err)
	}
	record := make([]string, len(header))
	for _, loc := range locations {
		for i, key := range header {
			record[i] = csvValue(loc[key])
		}
		if err := w.Write(record); err != nil {
			return fmt.Errorf("write locations csv: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("write locations csv: %w", err)
	}
	return nil
}

// csvValue flattens a JSON value into a cell. Nested objects and arrays are
// written as JSON.
func csvValue(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(b)
	}
}

// SetupExportResult is the output of export_setup_task.
type SetupExportResult struct {
	TaskCode        string `json:"task_code"`
	ProcessID       string `json:"process_id"`
	ExportCompleted bool   `json:"export_completed"`
	FilePath        string `json:"file_path"`
	Bytes           int    `json:"bytes"`
}

// ExportSetupTask runs a setup task CSV export and saves the archive as
// setup_exports/{task}_{process}.zip under the output directory.
func (s *Service) ExportSetupTask(ctx context.Context, args tool.Arguments) (*SetupExportResult, error) {
	taskCode := args.String("task_code")
	if taskCode == "" {
		return nil, tool.InvalidArguments("task_code is required")
	}
	export, err := s.fusion.ExportSetupTask(ctx, taskCode)
	if err != nil {
		return nil, err
	}

	dir := filepath.Join(s.outputDir, setupExportsDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create setup export directory: %w", err)
	}
	name := fmt.Sprintf("%s_%s.zip", filepath.Base(export.TaskCode), filepath.Base(export.ProcessID))
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, export.Data, 0o644); err != nil {
		return nil, fmt.Errorf("write setup export: %w", err)
	}
	s.logger.Info("setup export saved", "task_code", export.TaskCode, "process_id", export.ProcessID, "path", path)
	return &SetupExportResult{
		TaskCode:        export.TaskCode,
		ProcessID:       export.ProcessID,
		ExportCompleted: true,
		FilePath:        path,
		Bytes:           len(export.Data),
	}, nil
}
