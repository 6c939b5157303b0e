package playbook

import (
	"fmt"
	"log/slog"

	"github.com/jamesruggles/reportsuite/internal/database"
	"github.com/jamesruggles/reportsuite/internal/metrics"
)

// Attacher clones playbook templates into report sections.
type Attacher struct {
	db      *database.DB
	metrics *metrics.Metrics
}

func NewAttacher(db *database.DB, m *metrics.Metrics) *Attacher {
	return &Attacher{db: db, metrics: m}
}

// AttachResult lists which templates were materialized and which were
// skipped because they were already attached or do not exist.
type AttachResult struct {
	Attached []int64 `json:"attached"`
	Skipped  []int64 `json:"skipped"`
}

// Attach materializes each playbook template into the section. The whole
// call runs in one transaction: a structural error in any template leaves
// no rows behind. It returns (nil, nil) when the section does not belong
// to the report.
func (a *Attacher) Attach(reportID, sectionID int64, playbookIDs []int64) (*AttachResult, error) {
	var result *AttachResult
	var total Stats

	err := a.db.WithTx(func(tx *database.DB) error {
		report, err := tx.GetReport(reportID)
		if err != nil || report == nil {
			return err
		}
		section, err := tx.GetSection(reportID, sectionID)
		if err != nil || section == nil {
			return err
		}
		lang, err := tx.GetLanguage(report.LanguageID)
		if err != nil {
			return err
		}
		if lang == nil {
			return fmt.Errorf("report %d has no language", reportID)
		}

		res := &AttachResult{Attached: []int64{}, Skipped: []int64{}}
		for _, id := range playbookIDs {
			exists, err := tx.SectionPlaybookExists(sectionID, id)
			if err != nil {
				return err
			}
			tmpl, err := tx.GetPlaybook(id)
			if err != nil {
				return err
			}
			if exists || tmpl == nil {
				res.Skipped = append(res.Skipped, id)
				continue
			}

			forest, err := Parse([]byte(tmpl.Structure), lang.LanguageCode, tx)
			if err != nil {
				return fmt.Errorf("playbook %d: %w", id, err)
			}

			templateID := tmpl.ID
			link := &database.ReportSectionPlaybook{SectionID: sectionID, PlaybookID: &templateID, Name: tmpl.Name}
			if err := tx.CreateSectionPlaybook(link); err != nil {
				return err
			}
			st, err := Materialize(tx, reportID, link, forest)
			if err != nil {
				return fmt.Errorf("materialize playbook %d: %w", id, err)
			}
			total.Sections += st.Sections
			total.Procedures += st.Procedures
			res.Attached = append(res.Attached, id)
		}
		result = res
		return nil
	})
	if err != nil {
		return nil, err
	}
	if result != nil && len(result.Attached) > 0 {
		a.metrics.PlaybookNodes(total.Sections, total.Procedures)
		slog.Info("playbooks attached",
			"report_id", reportID,
			"section_id", sectionID,
			"playbooks", result.Attached,
			"sections", total.Sections,
			"procedures", total.Procedures,
		)
	}
	return result, nil
}
