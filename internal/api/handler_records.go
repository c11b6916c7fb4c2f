package api

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"palay-drying-backend/internal/drying"
	"palay-drying-backend/internal/identity"
	"palay-drying-backend/internal/model"
)

const dateLayout = "2006-01-02"

type readingsResponse struct {
	SensorValue     float64 `json:"sensor_value"`
	Temperature     float64 `json:"temperature"`
	Humidity        float64 `json:"humidity"`
	MoistureContent float64 `json:"moisture_content"`
	DateDried       string  `json:"date_dried"`
}

// TakeReading acquires a sensor reading and runs the moisture model on it.
// Nothing is persisted until the farmer finalizes the prediction.
func (h *Handler) TakeReading(c *gin.Context) {
	ctx := c.Request.Context()

	reading, err := h.sensor.Read(ctx)
	if err != nil {
		log.Printf("Error reading sensor: %v", err)
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "Could not read sensor data"})
		return
	}

	moisture, err := h.predict.Moisture(ctx, reading.SensorValue, reading.Temperature, reading.Humidity)
	if err != nil {
		log.Printf("Error predicting moisture: %v", err)
		c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"error": "Moisture prediction failed"})
		return
	}

	c.JSON(http.StatusOK, readingsResponse{
		SensorValue:     reading.SensorValue,
		Temperature:     reading.Temperature,
		Humidity:        reading.Humidity,
		MoistureContent: drying.Round2(moisture),
		DateDried:       time.Now().UTC().Format(dateLayout),
	})
}

type createRecordRequest struct {
	BatchName       string  `json:"batch_name"`
	InitialWeight   float64 `json:"initial_weight" binding:"required"`
	Temperature     float64 `json:"temperature"`
	Humidity        float64 `json:"humidity"`
	SensorValue     float64 `json:"sensor_value"`
	MoistureContent float64 `json:"moisture_content"`
	FinalMoisture   float64 `json:"final_moisture" binding:"required"`
	DatePlanted     string  `json:"date_planted"`
	DateHarvested   string  `json:"date_harvested"`
	DateDried       string  `json:"date_dried"`
}

type recordResponse struct {
	UUID        string  `json:"uuid"`
	BatchName   string  `json:"batch_name"`
	DryingTime  string  `json:"drying_time"`
	FinalWeight float64 `json:"final_weight"`
	DueDate     string  `json:"due_date,omitempty"`
	Synced      bool    `json:"synced"`
}

// CreateRecord finalizes a prediction into a durable drying record with a
// fresh uuid, pending upload on the next sync cycle.
func (h *Handler) CreateRecord(c *gin.Context) {
	var req createRecordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	datePlanted, err := parseOptionalDate(req.DatePlanted)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid date_planted, use YYYY-MM-DD"})
		return
	}
	dateHarvested, err := parseOptionalDate(req.DateHarvested)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid date_harvested, use YYYY-MM-DD"})
		return
	}
	dateDried, err := parseOptionalDate(req.DateDried)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid date_dried, use YYYY-MM-DD"})
		return
	}
	if dateDried == nil {
		today := time.Now().UTC().Truncate(24 * time.Hour)
		dateDried = &today
	}

	// Degenerate arithmetic is rejected before any derivation happens.
	finalWeight, err := drying.FinalWeight(req.InitialWeight, req.MoistureContent, req.FinalMoisture)
	if err != nil {
		var verr *drying.ValidationError
		if errors.As(err, &verr) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": verr.Error()})
			return
		}
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Weight derivation failed"})
		return
	}

	ctx := c.Request.Context()
	hoursF, err := h.predict.DryingTime(ctx, req.Temperature, req.Humidity, req.MoistureContent)
	if err != nil {
		log.Printf("Error predicting drying time: %v", err)
		c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"error": "Drying time prediction failed"})
		return
	}
	hours, minutes := drying.SplitHours(hoursF)

	session := sessionFrom(c)
	farmer, err := h.store.FarmerByID(ctx, session.AccountID)
	if err != nil || farmer == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to resolve farmer"})
		return
	}

	dueDate := drying.DueDate(*dateDried, req.FinalMoisture)
	rec := model.DryingRecord{
		UUID:            uuid.NewString(),
		BatchName:       req.BatchName,
		InitialWeight:   req.InitialWeight,
		Temperature:     req.Temperature,
		Humidity:        req.Humidity,
		SensorValue:     req.SensorValue,
		InitialMoisture: req.MoistureContent,
		FinalMoisture:   req.FinalMoisture,
		DryingTime:      drying.FormatDryingTime(hours, minutes),
		FinalWeight:     finalWeight,
		DatePlanted:     datePlanted,
		DateHarvested:   dateHarvested,
		DateDried:       dateDried,
		DueDate:         &dueDate,
		FarmerID:        farmer.ID,
		FarmerUUID:      farmer.UUID,
		BarangayID:      farmer.BarangayID,
		Synced:          false,
	}

	// Denormalize the municipality from the account's locality at write time.
	if barangayID, ok := identity.ForFarmer(*farmer).LocalityRef(); ok {
		if barangay, err := h.store.BarangayByID(ctx, barangayID); err == nil && barangay != nil {
			rec.MunicipalityID = &barangay.MunicipalityID
		}
	}

	if err := h.store.CreateRecord(ctx, &rec); err != nil {
		log.Printf("Error creating drying record: %v", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to save record"})
		return
	}

	if h.notifier != nil {
		// The timer outlives this request, so it is not tied to its context.
		after := time.Duration(hours)*time.Hour + time.Duration(minutes)*time.Minute
		h.notifier.ScheduleDryingDone(context.Background(), rec.ID, after)
	}

	c.JSON(http.StatusCreated, recordResponse{
		UUID:        rec.UUID,
		BatchName:   rec.BatchName,
		DryingTime:  rec.DryingTime,
		FinalWeight: rec.FinalWeight,
		DueDate:     dueDate.Format(dateLayout),
		Synced:      rec.Synced,
	})
}

// ListRecords returns the farmer's records, oldest first.
func (h *Handler) ListRecords(c *gin.Context) {
	session := sessionFrom(c)
	records, err := h.store.RecordsForFarmer(c.Request.Context(), session.AccountID)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve records"})
		return
	}
	c.JSON(http.StatusOK, records)
}

func parseOptionalDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
