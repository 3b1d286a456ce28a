package opendata

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"apartur/pkg/model"
)

// record is one row of the tourism registry. Numeric columns are published
// as numbers or strings depending on the export, so they go through flexNumber.
type record struct {
	RegistryNumber string     `json:"n_registro"`
	Name           string     `json:"nombre"`
	Category       string     `json:"categoria"`
	Province       string     `json:"provincia"`
	Municipality   string     `json:"municipio"`
	Locality       string     `json:"localidad"`
	Address        string     `json:"direccion"`
	PostalCode     flexString `json:"c_postal"`
	Phone          flexString `json:"telefono_1"`
	Email          string     `json:"email"`
	Website        string     `json:"web"`
	Capacity       flexNumber `json:"plazas"`
	Units          flexNumber `json:"unidades"`
	Latitude       flexNumber `json:"gps_latitud"`
	Longitude      flexNumber `json:"gps_longitud"`
	Position       *geoPoint  `json:"posicion"`
}

type geoPoint struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

func (r *record) toModel() *model.Apartment {
	a := &model.Apartment{
		RegistryNumber: r.RegistryNumber,
		Name:           r.Name,
		Category:       r.Category,
		Province:       r.Province,
		Municipality:   r.Municipality,
		Locality:       r.Locality,
		Address:        r.Address,
		PostalCode:     string(r.PostalCode),
		Phone:          string(r.Phone),
		Email:          r.Email,
		Website:        r.Website,
		Capacity:       int(r.Capacity.value()),
		Units:          int(r.Units.value()),
		Active:         true,
	}

	switch {
	case r.Latitude.valid && r.Longitude.valid:
		lat, lon := r.Latitude.n, r.Longitude.n
		a.Latitude, a.Longitude = &lat, &lon
	case r.Position != nil:
		lat, lon := r.Position.Lat, r.Position.Lon
		a.Latitude, a.Longitude = &lat, &lon
	}
	return a
}

type flexNumber struct {
	n     float64
	valid bool
}

func (f flexNumber) value() float64 {
	if !f.valid {
		return 0
	}
	return f.n
}

func (f *flexNumber) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		s = strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
		if s == "" {
			return nil
		}
		n, err := strconv.ParseFloat(s, 64)
		if err != nil {
			// Unparseable values are treated as missing.
			return nil
		}
		f.n, f.valid = n, true
		return nil
	}
	if err := json.Unmarshal(data, &f.n); err != nil {
		return err
	}
	f.valid = true
	return nil
}

type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	*f = flexString(string(data))
	return nil
}
