package model

// TwinPatch is a partial update of a device twin. Only the sections set are
// sent to the registry.
type TwinPatch struct {
	Tags       map[string]interface{} `json:"tags,omitempty"`
	Properties *PatchProperties       `json:"properties,omitempty"`
}

// PatchProperties holds the desired properties section of a patch.
type PatchProperties struct {
	Desired map[string]interface{} `json:"desired,omitempty"`
}

// IsEmpty reports whether the patch changes nothing.
func (p TwinPatch) IsEmpty() bool {
	if len(p.Tags) > 0 {
		return false
	}

	return p.Properties == nil || len(p.Properties.Desired) == 0
}

// ApplicationInfo describes running binary.
type ApplicationInfo struct {
	Revision    string
	Branch      string
	Environment string
}
