// Package referencefile reads plant reference data (plants, work centers,
// products, vendors, users) from a TOML file for the seed command.
package referencefile

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"tanktrace/internal/domain/queue"
	"tanktrace/internal/ports"
)

type plantEntry struct {
	ID            uint64 `toml:"id"`
	Code          string `toml:"code"`
	Name          string `toml:"name"`
	AlphaPrefix   string `toml:"alpha_prefix"`
	NextAlphaCode uint64 `toml:"next_alpha_code"`
}

type lineEntry struct {
	ID      uint64 `toml:"id"`
	PlantID uint64 `toml:"plant_id"`
	Name    string `toml:"name"`
}

type workCenterEntry struct {
	ID               uint64 `toml:"id"`
	PlantID          uint64 `toml:"plant_id"`
	ProductionLineID uint64 `toml:"production_line_id"`
	Name             string `toml:"name"`
	QueueType        string `toml:"queue_type"`
}

type assetEntry struct {
	ID           uint64 `toml:"id"`
	WorkCenterID uint64 `toml:"work_center_id"`
	Name         string `toml:"name"`
}

type productEntry struct {
	ID          uint64 `toml:"id"`
	PartNumber  string `toml:"part_number"`
	Description string `toml:"description"`
	Kind        string `toml:"kind"`
	TankSize    int    `toml:"tank_size"`
	ShellSize   string `toml:"shell_size"`
}

type vendorEntry struct {
	ID       uint64 `toml:"id"`
	Name     string `toml:"name"`
	Role     string `toml:"role"`
	Tracking string `toml:"tracking"`
}

type userEntry struct {
	ID    uint64 `toml:"id"`
	Name  string `toml:"name"`
	Badge string `toml:"badge"`
}

type referenceFile struct {
	Version         int               `toml:"version"`
	Plants          []plantEntry      `toml:"plants"`
	ProductionLines []lineEntry       `toml:"production_lines"`
	WorkCenters     []workCenterEntry `toml:"work_centers"`
	Assets          []assetEntry      `toml:"assets"`
	Products        []productEntry    `toml:"products"`
	Vendors         []vendorEntry     `toml:"vendors"`
	Users           []userEntry       `toml:"users"`
}

// Load reads and validates the file at path.
func Load(path string) (ports.ReferenceData, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return ports.ReferenceData{}, errors.New("reference file is required")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return ports.ReferenceData{}, err
	}
	return Parse(raw)
}

func Parse(raw []byte) (ports.ReferenceData, error) {
	var file referenceFile
	if err := toml.Unmarshal(raw, &file); err != nil {
		return ports.ReferenceData{}, err
	}
	if file.Version != 1 {
		return ports.ReferenceData{}, errors.New("unsupported reference file: expected version = 1")
	}
	return file.toData()
}

func (f referenceFile) toData() (ports.ReferenceData, error) {
	var data ports.ReferenceData

	for _, p := range f.Plants {
		if p.ID == 0 || strings.TrimSpace(p.AlphaPrefix) == "" {
			return ports.ReferenceData{}, fmt.Errorf("plants: id and alpha_prefix are required (plant %q)", p.Name)
		}
		next := p.NextAlphaCode
		if next == 0 {
			next = 1
		}
		data.Plants = append(data.Plants, ports.Plant{
			ID: p.ID, Code: p.Code, Name: p.Name,
			AlphaPrefix: strings.TrimSpace(p.AlphaPrefix), NextAlphaCode: next,
		})
	}
	for _, l := range f.ProductionLines {
		data.ProductionLines = append(data.ProductionLines, ports.ProductionLine(l))
	}
	for _, wc := range f.WorkCenters {
		var qt queue.Type
		switch raw := strings.ToLower(strings.TrimSpace(wc.QueueType)); raw {
		case "", "none":
			qt = queue.TypeNone
		case string(queue.TypeRolls), string(queue.TypeFitUp):
			qt = queue.Type(raw)
		default:
			return ports.ReferenceData{}, fmt.Errorf("work_centers.%d: unknown queue_type %q", wc.ID, wc.QueueType)
		}
		var line *uint64
		if wc.ProductionLineID != 0 {
			id := wc.ProductionLineID
			line = &id
		}
		data.WorkCenters = append(data.WorkCenters, ports.WorkCenter{
			ID: wc.ID, PlantID: wc.PlantID, ProductionLineID: line, Name: wc.Name, QueueType: qt,
		})
	}
	for _, a := range f.Assets {
		data.Assets = append(data.Assets, ports.Asset(a))
	}
	for _, p := range f.Products {
		data.Products = append(data.Products, ports.Product(p))
	}
	for _, v := range f.Vendors {
		role := strings.ToLower(strings.TrimSpace(v.Role))
		switch role {
		case ports.VendorRoleMill, ports.VendorRoleProcessor, ports.VendorRoleHead:
		default:
			return ports.ReferenceData{}, fmt.Errorf("vendors.%d: unknown role %q", v.ID, v.Role)
		}
		tracking := queue.Tracking(strings.ToLower(strings.TrimSpace(v.Tracking)))
		if role == ports.VendorRoleHead && tracking != queue.TrackingLot && tracking != queue.TrackingHeat {
			return ports.ReferenceData{}, fmt.Errorf("vendors.%d: head vendors need tracking = lot or heat", v.ID)
		}
		data.Vendors = append(data.Vendors, ports.Vendor{ID: v.ID, Name: v.Name, Role: role, Tracking: tracking})
	}
	for _, u := range f.Users {
		data.Users = append(data.Users, ports.User(u))
	}
	return data, nil
}
