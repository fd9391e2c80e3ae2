package archive

import (
	"context"

	"maexport/lib/htmlutil"
)

type Label struct {
	submission

	name           string
	status         string
	country        string
	aka            string
	specialty      string
	description    string
	url            string
	onlineShopping bool
	founded        string
	logo           string
	address        string
	phone          string
	email          string
	notes          string
	warning        string
	legit          bool
	parent         *Label
}

func (a *Archive) Label(id string) *Label {
	e, _ := a.registry.getOrCreate(KindLabel, id, func(id string) Entity {
		l := &Label{submission: submission{
			resource: resource{kind: KindLabel, id: id},
			arch:     a,
		}}
		l.owner = l
		return l
	})
	return e.(*Label)
}

func (l *Label) Load(ctx context.Context) error {
	return l.runPipeline(ctx, []step{
		l.loadCore,
		l.loadPeripherals,
		l.loadReports,
		l.loadHistory,
		l.loadLinks,
	})
}

func (l *Label) loadCore(ctx context.Context) error {
	l.log("loading: main data")

	page := "/label/edit/id/" + l.Id()
	doc, err := l.arch.site.FetchPage(ctx, page)
	if err != nil {
		return err
	}
	if _, err := requireSel(doc, "#labelName", page); err != nil {
		return err
	}

	l.name = htmlutil.InputValue(doc.Find("#labelName"))
	l.status = htmlutil.SelectedOptionText(doc.Find("#status"))
	l.country = htmlutil.SelectedOptionValue(doc.Find("#country"))
	l.aka = htmlutil.InputValue(doc.Find("#altSpelling"))
	l.specialty = htmlutil.InputValue(doc.Find("#specialisation"))
	l.description = htmlutil.TextareaValue(doc.Find(`textarea[name="description"]`))
	l.url = htmlutil.InputValue(doc.Find("#website"))
	l.onlineShopping = htmlutil.Checked(doc.Find("#onlineShopping_1"))
	l.founded = parseDateSelects(doc, "#foundingDateDay", "#foundingDateMonth", "#foundingDateYear")
	l.logo = doc.Find("#label_logo").AttrOr("href", "")
	l.address = htmlutil.TextareaValue(doc.Find(`textarea[name="address"]`))
	l.phone = htmlutil.InputValue(doc.Find("#phone"))
	l.email = htmlutil.InputValue(doc.Find("#email"))
	l.notes = htmlutil.TextareaValue(doc.Find(`textarea[name="additionalNotes"]`))
	l.warning = htmlutil.TextareaValue(doc.Find(`textarea[name="notesWarning"]`))
	l.legit = htmlutil.Checked(doc.Find("#verified_1"))

	// parent labels chain upward; each level registers and loads itself,
	// and the registry keeps revisits cheap
	if parentId := htmlutil.InputValue(doc.Find(`input[name="parentLabelId"]`)); parentId != "" && parentId != "0" {
		l.log("creating parent label")
		l.parent = l.arch.Label(parentId)
		return l.parent.Load(ctx)
	}
	return nil
}

func (l *Label) loadPeripherals(ctx context.Context) error {
	l.log("loading: peripherals")

	page := "/label/view/id/" + l.Id()
	doc, err := l.arch.site.FetchPage(ctx, page)
	if err != nil {
		return err
	}

	g := &group{}
	if err := l.parseAuditTrail(ctx, doc, page, g); err != nil {
		return err
	}
	return g.Wait()
}

func (l *Label) project() any {
	f := fields{}
	f.set("name", l.name)
	f.set("status", l.status)
	f.set("country", l.country)
	f.set("aka", l.aka)
	if l.parent != nil {
		f.set("parent", l.parent.ref())
	}
	f.set("specialty", l.specialty)
	f.set("description", l.description)
	f.set("url", l.url)
	f.set("onlineShopping", l.onlineShopping)
	if l.founded != bogusDate {
		f.set("founded", l.founded)
	}
	f.set("logo", l.logo)
	f.set("address", l.address)
	f.set("phone", l.phone)
	f.set("email", l.email)
	f.set("notes", l.notes)
	f.set("warning", l.warning)
	f.set("legit", l.legit)
	l.auditFields(f)
	return f
}
