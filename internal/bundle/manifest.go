package bundle

import (
	"encoding/json"
	"fmt"

	"github.com/xeipuuv/gojsonschema"

	"github.com/amscore/gcodeslots/internal/gcode/model"
)

// manifestSchema constrains the project-settings JSON this package accepts;
// unknown slicer-specific fields are tolerated (additionalProperties true).
const manifestSchema = `{
  "type": "object",
  "properties": {
    "filament_colour": {"type": "array", "items": {"type": "string"}},
    "filament_settings_id": {"type": "array", "items": {"type": "string"}},
    "curr_bed_type": {"type": "string"},
    "nozzle_diameter": {"type": "array", "items": {"type": "string"}},
    "version": {"type": "string"},
    "is_seq_print": {"type": ["boolean", "string"]},
    "bbox_objects": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "id": {"type": "string"},
          "bbox": {"type": "array", "items": {"type": "number"}}
        }
      }
    }
  },
  "additionalProperties": true
}`

var manifestSchemaLoader = gojsonschema.NewStringLoader(manifestSchema)

// ParseManifest validates raw project-settings JSON against manifestSchema
// and decodes the fields GcodeStats.BundleMetadata cares about.
func ParseManifest(raw []byte) (*model.BundleMetadata, error) {
	documentLoader := gojsonschema.NewBytesLoader(raw)

	result, err := gojsonschema.Validate(manifestSchemaLoader, documentLoader)
	if err != nil {
		return nil, &Error{Kind: KindCorruptMetadata, Cause: err}
	}

	if !result.Valid() {
		return nil, &Error{Kind: KindCorruptMetadata, Cause: fmt.Errorf("%d schema violations", len(result.Errors()))}
	}

	var doc struct {
		FilamentColour      []string `json:"filament_colour"`
		FilamentSettingsID  []string `json:"filament_settings_id"`
		CurrBedType         string   `json:"curr_bed_type"`
		NozzleDiameter      []string `json:"nozzle_diameter"`
		Version             string   `json:"version"`
		IsSeqPrint          any      `json:"is_seq_print"`
		BBoxObjects         []struct {
			ID   string    `json:"id"`
			BBox []float64 `json:"bbox"`
		} `json:"bbox_objects"`
	}

	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, &Error{Kind: KindCorruptMetadata, Cause: err}
	}

	meta := &model.BundleMetadata{
		FilamentColors: doc.FilamentColour,
		FilamentIDs:    doc.FilamentSettingsID,
		BedType:        doc.CurrBedType,
		Version:        doc.Version,
		IsSeqPrint:     asBool(doc.IsSeqPrint),
	}

	if len(doc.NozzleDiameter) > 0 {
		fmt.Sscanf(doc.NozzleDiameter[0], "%f", &meta.NozzleDiameter)
	}

	for _, obj := range doc.BBoxObjects {
		if len(obj.BBox) < 6 {
			continue
		}

		meta.BBoxObjects = append(meta.BBoxObjects, model.BoundingBox{
			ObjectID: obj.ID,
			MinX: obj.BBox[0], MinY: obj.BBox[1], MinZ: obj.BBox[2],
			MaxX: obj.BBox[3], MaxY: obj.BBox[4], MaxZ: obj.BBox[5],
		})
	}

	return meta, nil
}

func asBool(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		return t == "1" || t == "true"
	default:
		return false
	}
}
