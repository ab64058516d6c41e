package domain

import "strings"

// Field 是受覆盖策略控制的字段名。字符串值同时也是配置键名（priority.<kind>.<field>）。
type Field string

const (
	FieldTitle         Field = "title"
	FieldOriginalTitle Field = "originaltitle"
	FieldPlot          Field = "plot"
	FieldOutline       Field = "outline"
	FieldYear          Field = "year"
	FieldGenres        Field = "genres"
	FieldActors        Field = "actors"
	FieldDirectors     Field = "directors"
	FieldWriters       Field = "writers"
	FieldRuntime       Field = "runtime"
	FieldCertification Field = "certification"
	FieldCountry       Field = "country"
	FieldCompany       Field = "company"
	FieldAspectRatio   Field = "aspectratio"
	FieldReleaseDate   Field = "releasedate"
	FieldTagline       Field = "tagline"
	FieldQuote         Field = "quote"
	FieldLanguage      Field = "language"
	FieldResolution    Field = "resolution"
	FieldVideoSource   Field = "videosource"
	FieldVideoOutput   Field = "videooutput"
	FieldContainer     Field = "container"
	FieldFPS           Field = "fps"

	// people.* 保存带 id/url/photo 的结构化人物，与同名的纯名字字段分开定优先级。
	FieldPeopleActors    Field = "people.actors"
	FieldPeopleDirectors Field = "people.directors"
	FieldPeopleWriters   Field = "people.writers"
)

type Cardinality int

const (
	Scalar Cardinality = iota
	List
)

// Role 决定 list 字段受哪一个 max-count 约束；RoleNone 表示不受约束（例如 genres）。
type Role string

const (
	RoleNone     Role = ""
	RoleActor    Role = "actor"
	RoleDirector Role = "director"
	RoleWriter   Role = "writer"
)

type FieldSpec struct {
	Field       Field
	Cardinality Cardinality
	Role        Role
	People      bool // 元素为 Person 而不是纯字符串
}

func (s FieldSpec) IsList() bool { return s.Cardinality == List }

// allFields 的顺序即输出顺序（缓存快照、priorities 表格），保持稳定。
var allFields = []FieldSpec{
	{Field: FieldTitle},
	{Field: FieldOriginalTitle},
	{Field: FieldPlot},
	{Field: FieldOutline},
	{Field: FieldYear},
	{Field: FieldGenres, Cardinality: List},
	{Field: FieldActors, Cardinality: List, Role: RoleActor},
	{Field: FieldDirectors, Cardinality: List, Role: RoleDirector},
	{Field: FieldWriters, Cardinality: List, Role: RoleWriter},
	{Field: FieldRuntime},
	{Field: FieldCertification},
	{Field: FieldCountry},
	{Field: FieldCompany},
	{Field: FieldAspectRatio},
	{Field: FieldReleaseDate},
	{Field: FieldTagline},
	{Field: FieldQuote},
	{Field: FieldLanguage},
	{Field: FieldResolution},
	{Field: FieldVideoSource},
	{Field: FieldVideoOutput},
	{Field: FieldContainer},
	{Field: FieldFPS},
	{Field: FieldPeopleActors, Cardinality: List, Role: RoleActor, People: true},
	{Field: FieldPeopleDirectors, Cardinality: List, Role: RoleDirector, People: true},
	{Field: FieldPeopleWriters, Cardinality: List, Role: RoleWriter, People: true},
}

var specByField = func() map[Field]FieldSpec {
	m := make(map[Field]FieldSpec, len(allFields))
	for _, s := range allFields {
		m[s.Field] = s
	}
	return m
}()

// Fields 返回全部字段（稳定顺序）。返回值是副本，调用方可以随意修改。
func Fields() []Field {
	out := make([]Field, 0, len(allFields))
	for _, s := range allFields {
		out = append(out, s.Field)
	}
	return out
}

// Spec 返回字段的元信息；未知字段按 Scalar 处理。
func (f Field) Spec() FieldSpec {
	if s, ok := specByField[f]; ok {
		return s
	}
	return FieldSpec{Field: f}
}

// ParseField 大小写不敏感地解析字段名。
func ParseField(name string) (Field, bool) {
	f := Field(strings.ToLower(strings.TrimSpace(name)))
	_, ok := specByField[f]
	return f, ok
}
