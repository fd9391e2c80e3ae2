package archive

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
)

// editDetail is one changed field in a modification record.
type editDetail struct {
	field string
	old   string
	new   string
}

// Edit is one item in a submission's modification history. A single edit
// event can apply to several submissions at once, so its subjects form a
// set the submissions register themselves into; the edit does not own them.
type Edit struct {
	resource
	arch *Archive

	on          string
	by          *User
	note        string
	haveDetails bool
	details     []editDetail

	subjectsMu sync.Mutex
	subjects   map[string]Entity // keyed by kind/id
}

var historyRowId = regexp.MustCompile(`(?i)data-historyId='(\d+)'`)

// editFromRow registers the edit a history-list row describes. Rows for an
// already-known edit resolve to the existing instance.
func (a *Archive) editFromRow(row []string) (*Edit, error) {
	if len(row) < 4 {
		return nil, fmt.Errorf("history row has %d cells, expected 4+", len(row))
	}
	idm := historyRowId.FindStringSubmatch(row[3])
	if idm == nil {
		return nil, fmt.Errorf("history row carries no id: %q", row[3])
	}
	bym := anchorText.FindStringSubmatch(row[1])
	if bym == nil {
		return nil, fmt.Errorf("history row missing editor link: %q", row[1])
	}

	e, _ := a.registry.getOrCreate(KindEdit, idm[1], func(id string) Entity {
		return &Edit{
			resource:    resource{kind: KindEdit, id: id},
			arch:        a,
			on:          row[0],
			by:          a.UserByName(bym[1]),
			note:        row[2],
			haveDetails: strings.Contains(row[3], "ui-icon-plus"),
			subjects:    map[string]Entity{},
		}
	})
	return e.(*Edit), nil
}

// addSubject registers a submission this edit applies to. Safe to call from
// concurrent fan-outs; membership is id-based, so re-adds are no-ops.
func (e *Edit) addSubject(subject Entity) {
	e.subjectsMu.Lock()
	defer e.subjectsMu.Unlock()
	e.subjects[string(subject.Kind())+"/"+subject.Id()] = subject
}

func (e *Edit) Load(ctx context.Context) error {
	return e.runPipeline(ctx, []step{
		e.loadDetails,
	})
}

func (e *Edit) loadDetails(ctx context.Context) error {
	if !e.haveDetails {
		return nil
	}
	e.log("loading: details")

	page := "/history/ajax-details/id/" + e.Id()
	doc, err := e.arch.site.FetchPage(ctx, page)
	if err != nil {
		return err
	}

	doc.Find("tbody > tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() < 3 {
			return
		}
		e.details = append(e.details, editDetail{
			field: strings.TrimSpace(cells.Eq(0).Text()),
			old:   strings.TrimSpace(cells.Eq(1).Text()),
			new:   strings.TrimSpace(cells.Eq(2).Text()),
		})
	})
	return nil
}

func (e *Edit) project() any {
	f := fields{}
	f.set("on", e.on)
	if e.by != nil {
		f.set("by", e.by.ref())
	}
	f.set("note", e.note)
	if len(e.details) > 0 {
		details := make([]any, len(e.details))
		for i, d := range e.details {
			df := fields{}
			df.set("field", d.field)
			df.set("old", d.old)
			df.set("new", d.new)
			details[i] = df
		}
		f["details"] = details
	}

	// emit subjects in a stable order: by object type, then numeric id
	e.subjectsMu.Lock()
	subjects := make([]Entity, 0, len(e.subjects))
	for _, s := range e.subjects {
		subjects = append(subjects, s)
	}
	e.subjectsMu.Unlock()
	if len(subjects) > 0 {
		sort.Slice(subjects, func(i, j int) bool {
			a, b := subjects[i], subjects[j]
			if at, bt := a.Kind().objectTypeID(), b.Kind().objectTypeID(); at != bt {
				return at < bt
			}
			return compareIds(a.Id(), b.Id()) < 0
		})
		refs := make([]any, len(subjects))
		for i, s := range subjects {
			refs[i] = s.ref()
		}
		f["for"] = refs
	}
	return f
}

func (e *Edit) ref() any {
	return idValue(e.Id())
}
