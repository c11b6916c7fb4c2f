package remote

import (
	"fmt"
	"time"

	"palay-drying-backend/internal/model"
)

const dateLayout = "2006-01-02"

// Date is a calendar date serialized as "YYYY-MM-DD" on the wire.
type Date struct {
	time.Time
}

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.Format(dateLayout) + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := string(b)
	if s == "null" {
		return nil
	}
	if len(s) < 2 || s[0] != '"' || s[len(s)-1] != '"' {
		return fmt.Errorf("invalid date %s", s)
	}
	t, err := time.Parse(dateLayout, s[1:len(s)-1])
	if err != nil {
		return fmt.Errorf("invalid date %s: %w", s, err)
	}
	d.Time = t
	return nil
}

// Record is the wire representation of a drying record. The schema is fixed
// and shared by upload requests and download responses.
type Record struct {
	UUID            string     `json:"uuid"`
	BatchName       *string    `json:"batch_name"`
	InitialWeight   float64    `json:"initial_weight"`
	Temperature     float64    `json:"temperature"`
	Humidity        float64    `json:"humidity"`
	SensorValue     float64    `json:"sensor_value"`
	InitialMoisture float64    `json:"initial_moisture"`
	FinalMoisture   float64    `json:"final_moisture"`
	DryingTime      string     `json:"drying_time"`
	FinalWeight     float64    `json:"final_weight"`
	DatePlanted     *Date      `json:"date_planted"`
	DateHarvested   *Date      `json:"date_harvested"`
	DateDried       *Date      `json:"date_dried"`
	DueDate         *Date      `json:"due_date"`
	UpdatedAt       *time.Time `json:"updated_at"`
	FarmerUUID      string     `json:"farmer_uuid"`
	FarmerName      *string    `json:"farmer_name"`
	BarangayID      *int64     `json:"barangay_id"`
	MunicipalityID  *int64     `json:"municipality_id"`
	UserID          *int64     `json:"user_id"`
}

// uploadRequest is the body of an upload call.
type uploadRequest struct {
	Records []Record `json:"records"`
}

// authRequest / authResponse model the credential exchange.
type authRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type authResponse struct {
	Token string `json:"token"`
}

// RemoteFarmer is the remote's view of a farmer account.
type RemoteFarmer struct {
	UUID       string `json:"uuid"`
	Username   string `json:"username"`
	FullName   string `json:"full_name"`
	BarangayID *int64 `json:"barangay_id"`
}

// RemoteBarangay and RemoteMunicipality carry locality reference data.
type RemoteBarangay struct {
	ID             int64  `json:"id"`
	Name           string `json:"name"`
	MunicipalityID int64  `json:"municipality_id"`
}

type RemoteMunicipality struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// LocalBarangays converts wire barangays to local reference rows.
func LocalBarangays(in []RemoteBarangay) []model.Barangay {
	out := make([]model.Barangay, len(in))
	for i, b := range in {
		out[i] = model.Barangay{ID: b.ID, Name: b.Name, MunicipalityID: b.MunicipalityID}
	}
	return out
}

// LocalMunicipalities converts wire municipalities to local reference rows.
func LocalMunicipalities(in []RemoteMunicipality) []model.Municipality {
	out := make([]model.Municipality, len(in))
	for i, m := range in {
		out[i] = model.Municipality{ID: m.ID, Name: m.Name}
	}
	return out
}

// RecordFromModel converts a local record to its wire form.
func RecordFromModel(rec model.DryingRecord, farmerName string) Record {
	out := Record{
		UUID:            rec.UUID,
		InitialWeight:   rec.InitialWeight,
		Temperature:     rec.Temperature,
		Humidity:        rec.Humidity,
		SensorValue:     rec.SensorValue,
		InitialMoisture: rec.InitialMoisture,
		FinalMoisture:   rec.FinalMoisture,
		DryingTime:      rec.DryingTime,
		FinalWeight:     rec.FinalWeight,
		DatePlanted:     wireDate(rec.DatePlanted),
		DateHarvested:   wireDate(rec.DateHarvested),
		DateDried:       wireDate(rec.DateDried),
		DueDate:         wireDate(rec.DueDate),
		FarmerUUID:      rec.FarmerUUID,
		BarangayID:      rec.BarangayID,
		MunicipalityID:  rec.MunicipalityID,
	}
	if rec.BatchName != "" {
		out.BatchName = &rec.BatchName
	}
	if farmerName != "" {
		out.FarmerName = &farmerName
	}
	if !rec.UpdatedAt.IsZero() {
		t := rec.UpdatedAt
		out.UpdatedAt = &t
	}
	return out
}

// ToModel converts a wire record to a local model. The caller is
// responsible for resolving FarmerID from FarmerUUID.
func (r Record) ToModel() model.DryingRecord {
	rec := model.DryingRecord{
		UUID:            r.UUID,
		InitialWeight:   r.InitialWeight,
		Temperature:     r.Temperature,
		Humidity:        r.Humidity,
		SensorValue:     r.SensorValue,
		InitialMoisture: r.InitialMoisture,
		FinalMoisture:   r.FinalMoisture,
		DryingTime:      r.DryingTime,
		FinalWeight:     r.FinalWeight,
		DatePlanted:     modelDate(r.DatePlanted),
		DateHarvested:   modelDate(r.DateHarvested),
		DateDried:       modelDate(r.DateDried),
		DueDate:         modelDate(r.DueDate),
		FarmerUUID:      r.FarmerUUID,
		BarangayID:      r.BarangayID,
		MunicipalityID:  r.MunicipalityID,
	}
	if r.BatchName != nil {
		rec.BatchName = *r.BatchName
	}
	if r.UpdatedAt != nil {
		rec.UpdatedAt = *r.UpdatedAt
	}
	return rec
}

func wireDate(t *time.Time) *Date {
	if t == nil {
		return nil
	}
	return &Date{Time: *t}
}

func modelDate(d *Date) *time.Time {
	if d == nil || d.IsZero() {
		return nil
	}
	t := d.Time
	return &t
}
