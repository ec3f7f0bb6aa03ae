package main

import (
	"context"

	"github.com/warp/rota-engine/rota"
)

var demoDoctors = []rota.Doctor{
	{ID: "u1", Name: "Dr. Sarah Ahmed", Specialty: "Emergency Medicine", Level: rota.LevelSpecialist, City: "Riyadh"},
	{ID: "d2", Name: "Dr. John Doe", Specialty: "Cardiology", Level: rota.LevelConsultant, City: "Jeddah"},
	{ID: "d3", Name: "Dr. Maria Garcia", Specialty: "Pediatrics", Level: rota.LevelResident, City: "Riyadh"},
}

// seedDoctors fills an empty roster so the assistant has doctors to match.
func seedDoctors(ctx context.Context, store rota.Store) error {
	existing, err := store.ListDoctors(ctx)
	if err != nil || len(existing) > 0 {
		return err
	}
	for _, d := range demoDoctors {
		if err := store.SaveDoctor(ctx, d); err != nil {
			return err
		}
	}
	return nil
}
