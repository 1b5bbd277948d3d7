package catalog

// Field identifies a canonical catalog column.
type Field string

const (
	FieldReference     Field = "reference"
	FieldName          Field = "name"
	FieldCategory      Field = "category"
	FieldOrigin        Field = "origin"
	FieldDate          Field = "date"
	FieldLabel         Field = "label"
	FieldCertification Field = "certification"
	FieldDescription   Field = "description"
	FieldImage         Field = "image"
)

// Fields lists the source fields in their positional spreadsheet order.
var Fields = []Field{
	FieldReference,
	FieldName,
	FieldCategory,
	FieldOrigin,
	FieldDate,
	FieldLabel,
	FieldCertification,
	FieldDescription,
	FieldImage,
}

// Required reports whether the field must be mapped to a source column.
// Only the image reference is optional.
func (f Field) Required() bool {
	return f != FieldImage
}

func (f Field) valid() bool {
	for _, known := range Fields {
		if f == known {
			return true
		}
	}
	return false
}

// Sentinel replaces absent values so that no field is ever empty.
const Sentinel = "Non spécifié"

// Record is one normalized catalog entry. Every field except Image holds
// either a real value or its configured default.
type Record struct {
	// Table and Row locate the record in its source (Row is 1-based).
	Table string `json:"table"`
	Row   int    `json:"row"`

	Reference     string `json:"reference"`
	Name          string `json:"name"`
	Category      string `json:"category"`
	Origin        string `json:"origin"`
	Date          string `json:"date"`
	Label         string `json:"label"`
	Certification string `json:"certification"`
	Description   string `json:"description"`
	Image         string `json:"image,omitempty"`

	// Derived from Description.
	Dimensions string `json:"dimensions"`
	Price      string `json:"price"`
}

// Get returns the value of a source field.
func (r Record) Get(f Field) string {
	switch f {
	case FieldReference:
		return r.Reference
	case FieldName:
		return r.Name
	case FieldCategory:
		return r.Category
	case FieldOrigin:
		return r.Origin
	case FieldDate:
		return r.Date
	case FieldLabel:
		return r.Label
	case FieldCertification:
		return r.Certification
	case FieldDescription:
		return r.Description
	case FieldImage:
		return r.Image
	}
	return ""
}

func (r *Record) set(f Field, v string) {
	switch f {
	case FieldReference:
		r.Reference = v
	case FieldName:
		r.Name = v
	case FieldCategory:
		r.Category = v
	case FieldOrigin:
		r.Origin = v
	case FieldDate:
		r.Date = v
	case FieldLabel:
		r.Label = v
	case FieldCertification:
		r.Certification = v
	case FieldDescription:
		r.Description = v
	case FieldImage:
		r.Image = v
	}
}
