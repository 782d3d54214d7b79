package dolls

import (
	"context"
	"time"

	kpool "github.com/virtual-closet/closet/pkg/conn/db/postgres/pool"
	"github.com/virtual-closet/closet/pkg/conn/db/postgres/scanner"
	kdb "github.com/virtual-closet/closet/pkg/db"
	kpgerr "github.com/virtual-closet/closet/pkg/db/postgres/errors"
	xe "github.com/virtual-closet/closet/pkg/errors"
)

const table = "doll"

const columns = `"doll_id", "name", "age", "height", "weight", "gender", "skin_color", "model_type", "file_path", "file_url", "created_at", "updated_at"`

type row struct {
	DollId    string `sql:"doll_id"`
	Name      string
	Age       int
	Height    float64
	Weight    float64
	Gender    string
	SkinColor string
	ModelType string
	FilePath  string
	FileUrl   string `sql:"file_url"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (r row) toDoll() kdb.Doll {
	return kdb.Doll{
		DollSpec: kdb.DollSpec{
			ID:        r.DollId,
			Name:      r.Name,
			Age:       r.Age,
			Height:    r.Height,
			Weight:    r.Weight,
			Gender:    kdb.Gender(r.Gender),
			SkinColor: r.SkinColor,
			ModelType: kdb.ModelType(r.ModelType),
			FilePath:  r.FilePath,
			FileURL:   r.FileUrl,
		},
		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
	}
}

type pgDolls struct {
	pool kpool.Pool
}

var _ kdb.DollInterface = &pgDolls{}

func New(pool kpool.Pool) kdb.DollInterface {
	return &pgDolls{pool: pool}
}

func (m *pgDolls) one(ctx context.Context, id string, query string, params ...interface{}) (kdb.Doll, error) {
	rows, err := scanner.New[row]().QueryAll(ctx, m.pool, query, params...)
	if err != nil {
		return kdb.Doll{}, xe.Wrap(kpgerr.Classify(err, table, id))
	}
	if len(rows) == 0 {
		return kdb.Doll{}, xe.Wrap(kpgerr.Missing{Table: table, Identity: id})
	}
	return rows[0].toDoll(), nil
}

func (m *pgDolls) Insert(ctx context.Context, spec kdb.DollSpec) (kdb.Doll, error) {
	if err := spec.Validate(); err != nil {
		return kdb.Doll{}, err
	}
	return m.one(
		ctx, spec.ID,
		`
		insert into "doll"
			("doll_id", "name", "age", "height", "weight", "gender", "skin_color", "model_type", "file_path", "file_url")
		values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		returning `+columns,
		spec.ID, spec.Name, spec.Age, spec.Height, spec.Weight,
		string(spec.Gender), spec.SkinColor, string(spec.ModelType),
		spec.FilePath, spec.FileURL,
	)
}

func (m *pgDolls) Get(ctx context.Context, id string) (kdb.Doll, error) {
	return m.one(
		ctx, id,
		`select `+columns+` from "doll" where "doll_id" = $1`,
		id,
	)
}

func (m *pgDolls) UpdateFile(ctx context.Context, id string, filePath string, fileURL string) (kdb.Doll, error) {
	return m.one(
		ctx, id,
		`
		update "doll"
		set "file_path" = $2, "file_url" = $3, "updated_at" = clock_timestamp()
		where "doll_id" = $1
		returning `+columns,
		id, filePath, fileURL,
	)
}
