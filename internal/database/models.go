package database

import "time"

type User struct {
	ID       int64  `json:"id"`
	Email    string `json:"email"`
	FullName string `json:"full_name"`
	IsAdmin  bool   `json:"is_admin"`
	IsActive bool   `json:"is_active"`
}

type Project struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Customer    string    `json:"customer"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type ReportLanguage struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	LanguageCode string `json:"language_code"`
}

type Report struct {
	ID         int64     `json:"id"`
	ProjectID  int64     `json:"project_id"`
	LanguageID int64     `json:"language_id"`
	Title      string    `json:"title"`
	Summary    string    `json:"summary"`
	CreatedAt  time.Time `json:"created_at"`
}

// AssetType is the declared type of a report scope entry.
type AssetType string

const (
	AssetIPAddress    AssetType = "ip_address"
	AssetNetworkRange AssetType = "network_range"
	AssetEmailAddress AssetType = "email_address"
)

type ReportScope struct {
	ID          int64     `json:"id"`
	ReportID    int64     `json:"report_id"`
	Type        AssetType `json:"type"`
	Asset       string    `json:"asset"`
	Description string    `json:"description"`
}

type ReportSection struct {
	ID          int64  `json:"id"`
	ReportID    int64  `json:"report_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Order       int    `json:"order"`
	Hide        bool   `json:"hide"`
}

// ReportSectionPlaybook links a section to the playbook template it was
// materialized from. Name is copied at attach time.
type ReportSectionPlaybook struct {
	ID         int64  `json:"id"`
	SectionID  int64  `json:"section_id"`
	PlaybookID *int64 `json:"playbook_id,omitempty"`
	Name       string `json:"name"`
	Order      int    `json:"order"`
}

// PlaybookSection is owned either by a ReportSectionPlaybook (root nodes)
// or by another PlaybookSection, never both.
type PlaybookSection struct {
	ID                int64  `json:"id"`
	SectionPlaybookID *int64 `json:"section_playbook_id,omitempty"`
	ParentID          *int64 `json:"parent_id,omitempty"`
	Name              string `json:"name"`
	Description       string `json:"description"`
	Order             int    `json:"order"`
}

type ReportProcedure struct {
	ID                int64  `json:"id"`
	ReportID          int64  `json:"report_id"`
	PlaybookSectionID int64  `json:"playbook_section_id"`
	SourceTemplateID  *int64 `json:"source_template_id,omitempty"`
	Name              string `json:"name"`
	Objective         string `json:"objective"`
	Description       string `json:"description"`
	Order             int    `json:"order"`
}

// VulnerabilityStatus is ordered: draft < review < final < resolved < hide.
type VulnerabilityStatus string

const (
	VulnerabilityDraft    VulnerabilityStatus = "draft"
	VulnerabilityReview   VulnerabilityStatus = "review"
	VulnerabilityFinal    VulnerabilityStatus = "final"
	VulnerabilityResolved VulnerabilityStatus = "resolved"
	VulnerabilityHide     VulnerabilityStatus = "hide"
)

func (s VulnerabilityStatus) Valid() bool {
	switch s {
	case VulnerabilityDraft, VulnerabilityReview, VulnerabilityFinal, VulnerabilityResolved, VulnerabilityHide:
		return true
	}
	return false
}

type Vulnerability struct {
	ID               int64               `json:"id"`
	SectionID        int64               `json:"section_id"`
	SourceTemplateID *int64              `json:"source_template_id,omitempty"`
	Title            string              `json:"title"`
	Description      string              `json:"description"`
	Rating           string              `json:"rating"`
	Measures         []string            `json:"measures"`
	Status           VulnerabilityStatus `json:"status"`
	Order            int                 `json:"order"`
	CreatedAt        time.Time           `json:"created_at"`
}

// --- Templates ---

type Playbook struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Structure string `json:"structure"`
}

// ProcedureContent is the language-specific part of a test procedure template.
type ProcedureContent struct {
	Title       string `json:"title"`
	Objective   string `json:"objective"`
	Description string `json:"description"`
}

type TestProcedure struct {
	ID      int64                       `json:"id"`
	Name    string                      `json:"name"`
	Content map[string]ProcedureContent `json:"content"`
}

type VulnerabilityContent struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Measures    []string `json:"measures"`
}

type VulnerabilityTemplate struct {
	ID      int64                           `json:"id"`
	Name    string                          `json:"name"`
	Rating  string                          `json:"rating"`
	Content map[string]VulnerabilityContent `json:"content"`
}

// --- Versions ---

type VersionStatus string

const (
	VersionDraft VersionStatus = "draft"
	VersionFinal VersionStatus = "final"
)

func (s VersionStatus) Valid() bool {
	return s == VersionDraft || s == VersionFinal
}

// CreationStatus is the render pipeline state of a version:
// scheduled -> generating -> successful | failed.
type CreationStatus string

const (
	CreationScheduled  CreationStatus = "scheduled"
	CreationGenerating CreationStatus = "generating"
	CreationSuccessful CreationStatus = "successful"
	CreationFailed     CreationStatus = "failed"
)

// Terminal reports whether a render has finished, one way or the other.
func (s CreationStatus) Terminal() bool {
	return s == CreationSuccessful || s == CreationFailed
}

// ReportVersion carries version metadata. Blobs are only loaded through
// GetVersionArtifact.
type ReportVersion struct {
	ID             int64          `json:"id"`
	ReportID       int64          `json:"report_id"`
	UserID         *int64         `json:"user_id,omitempty"`
	Version        float64        `json:"version"`
	Status         VersionStatus  `json:"status"`
	Comment        string         `json:"comment"`
	ReportDate     *time.Time     `json:"report_date,omitempty"`
	CreationStatus CreationStatus `json:"creation_status"`
	JSONObject     []byte         `json:"-"`
	CreatedAt      time.Time      `json:"created_at"`
}

// VersionSummary is the listing shape: metadata, requestor and which
// artifacts exist.
type VersionSummary struct {
	ID             int64          `json:"id"`
	Version        float64        `json:"version"`
	Status         VersionStatus  `json:"status"`
	Comment        string         `json:"comment"`
	ReportDate     *time.Time     `json:"report_date,omitempty"`
	CreationStatus CreationStatus `json:"creation_status"`
	User           *User          `json:"user,omitempty"`
	HasPDF         bool           `json:"has_pdf"`
	HasXLSX        bool           `json:"has_xlsx"`
	HasPDFLog      bool           `json:"has_pdf_log"`
	HasTex         bool           `json:"has_tex"`
	CreatedAt      time.Time      `json:"created_at"`
}

// Artifacts are the render outputs written back by the renderer.
type Artifacts struct {
	PDF    []byte
	PDFLog []byte
	Tex    []byte
	XLSX   []byte
}
