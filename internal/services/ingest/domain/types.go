// Package domain defines the ingest service types and ports
package domain

import "time"

// Payload is the wire shape antennas publish. Field names follow the
// capture firmware, casing included
type Payload struct {
	RT         float64  `json:"rt" validate:"required"`
	Type       *int16   `json:"type" validate:"required"`
	Subtype    *int16   `json:"subtype"`
	Channel    int16    `json:"Channel"`
	RSSI       int16    `json:"rssi" validate:"lte=0"`
	SSID       string   `json:"ssid"`
	SA         string   `json:"sa" validate:"required"`
	DA         string   `json:"da" validate:"required"`
	SN         int32    `json:"sn"`
	CName      string   `json:"cname"`
	UploadTime *float64 `json:"upload_time"`
}

// RawEvent is one normalized detection bound for a partition leaf
type RawEvent struct {
	RT           time.Time
	SA           string
	DA           string
	RSSI         int16
	SeqNo        int32
	Vendor       string
	FrameType    int16
	FrameSubtype int16
	SSID         string
	Channel      int16
	UploadTime   *time.Time
	DeliveryTime time.Time
	Antenna      string
}
