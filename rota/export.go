package rota

import (
	"context"
	"encoding/csv"
	"io"

	"go.uber.org/zap"
)

// CSVHeader is the first row of a schedule export.
var CSVHeader = []string{"ID", "Center", "Date", "Type", "Start", "End", "Status", "Doctor"}

// WriteScheduleCSV writes one row per shift. Unassigned shifts show "Unassigned".
func WriteScheduleCSV(w io.Writer, shifts []Shift) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return err
	}
	for _, s := range shifts {
		doctor := s.AssignedDoctorID
		if doctor == "" {
			doctor = "Unassigned"
		}
		row := []string{s.ID, s.CenterName, s.Date.String(), string(s.Type), s.StartTime, s.EndTime, string(s.Status), doctor}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ExportSchedule writes the full schedule as CSV and notifies actor.
func (s *Service) ExportSchedule(ctx context.Context, actor Actor, w io.Writer) error {
	shifts, err := s.store.ListShifts(ctx)
	if err != nil {
		return err
	}
	if err := WriteScheduleCSV(w, shifts); err != nil {
		return err
	}
	err = s.store.WithTx(ctx, func(st Store) error {
		return s.notify(ctx, st, actor.ID, "Export Complete", "Schedule downloaded as CSV", NotifySuccess, "")
	})
	if err != nil {
		s.log.Warn("export notification not saved", zap.Error(err))
	}
	return nil
}
