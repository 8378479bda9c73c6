package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"example.com/backstage/services/skip/internal/service"
)

// PlacementRequest is the request body for deliver, relocate and return
type PlacementRequest struct {
	QRCode     string `json:"qr_code" binding:"required"`
	ToZoneID   string `json:"to_zone_id" binding:"required"`
	DriverName string `json:"driver_name"`
	VehicleReg string `json:"vehicle_reg"`
	Note       string `json:"note"`
}

// CollectionRequest is the request body for collecting a full skip
type CollectionRequest struct {
	QRCode     string   `json:"qr_code" binding:"required"`
	GrossKg    *float64 `json:"gross_kg"`
	TareKg     *float64 `json:"tare_kg"`
	NetKg      *float64 `json:"net_kg"`
	Source     string   `json:"source"`
	DriverName string   `json:"driver_name"`
	VehicleReg string   `json:"vehicle_reg"`
	Note       string   `json:"note"`

	DestinationType    string `json:"destination_type"`
	DestinationName    string `json:"destination_name"`
	DestinationAddress string `json:"destination_address"`
	SiteID             string `json:"site_id"`
	CommodityID        string `json:"commodity_id"`
}

func (r *PlacementRequest) operator() service.Operator {
	return service.Operator{DriverName: r.DriverName, VehicleReg: r.VehicleReg}
}

// scanSkip resolves a QR code to the skip it identifies
func (s *Server) scanSkip(c *gin.Context) {
	code := c.Query("qr")
	if code == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "qr is required"})
		return
	}

	summary, err := s.lifecycle.Scan(c.Request.Context(), code)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, summary)
}

// skipHistory returns the movement log for a skip
func (s *Server) skipHistory(c *gin.Context) {
	movements, err := s.lifecycle.History(c.Request.Context(), c.Param("qr"))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"movements": movements})
}

// deliverEmpty places an empty skip at a zone
func (s *Server) deliverEmpty(c *gin.Context) {
	var req PlacementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	movement, placement, err := s.lifecycle.DeliverEmpty(c.Request.Context(), req.QRCode, req.ToZoneID, req.operator(), req.Note)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"movement": movement, "placement_id": placement.PlacementID})
}

// relocateEmpty moves a deployed skip to another zone
func (s *Server) relocateEmpty(c *gin.Context) {
	var req PlacementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	movement, placement, err := s.lifecycle.RelocateEmpty(c.Request.Context(), req.QRCode, req.ToZoneID, req.operator(), req.Note)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"movement": movement, "placement_id": placement.PlacementID})
}

// collectFull collects a full skip, records the weighing and issues the note
func (s *Server) collectFull(c *gin.Context) {
	var req CollectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	dest := service.DestinationInput{
		Type:        req.DestinationType,
		Name:        req.DestinationName,
		Address:     req.DestinationAddress,
		SiteID:      req.SiteID,
		CommodityID: req.CommodityID,
	}
	weight := service.WeightInput{
		GrossKg: req.GrossKg,
		TareKg:  req.TareKg,
		NetKg:   req.NetKg,
		Source:  req.Source,
	}
	op := service.Operator{DriverName: req.DriverName, VehicleReg: req.VehicleReg}

	result, err := s.lifecycle.CollectFull(c.Request.Context(), req.QRCode, dest, weight, op, req.Note)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, result)
}

// returnEmpty places an emptied skip back at a zone after processing
func (s *Server) returnEmpty(c *gin.Context) {
	var req PlacementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	movement, placement, err := s.lifecycle.ReturnEmpty(c.Request.Context(), req.QRCode, req.ToZoneID, req.operator(), req.Note)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"movement": movement, "placement_id": placement.PlacementID})
}
