package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	apidolls "github.com/virtual-closet/closet/pkg/api/types/dolls"
	apierr "github.com/virtual-closet/closet/pkg/api/types/errors"
	kdb "github.com/virtual-closet/closet/pkg/db"
	"github.com/virtual-closet/closet/pkg/storage"
	"github.com/virtual-closet/closet/pkg/workloads/generator"
)

// Generator builds doll models. *generator.Generator is the one.
type Generator interface {
	Create(context.Context, generator.CreateParams) (generator.Result, error)
	Apply(context.Context, generator.ApplyParams) (generator.Result, error)
}

var errForm = errors.New("malformed form")

func generationFailed(err error) *echo.HTTPError {
	gerr := new(generator.GenerationError)
	if !errors.As(err, &gerr) {
		return apierr.InternalServerError(err)
	}
	advice := strings.TrimSpace(gerr.Stderr)
	if advice == "" {
		advice = strings.TrimSpace(gerr.Stdout)
	}
	return apierr.NewErrorMessage(
		http.StatusInternalServerError,
		"doll generation failed",
		apierr.WithAdvice(advice),
		apierr.WithError(err),
	)
}

func formValue(c echo.Context, key string, defaultValue string) string {
	v := strings.TrimSpace(c.FormValue(key))
	if v == "" {
		return defaultValue
	}
	return v
}

func parseDollForm(c echo.Context) (kdb.DollSpec, error) {
	spec := kdb.DollSpec{
		Name:      formValue(c, "name", ""),
		Gender:    kdb.Gender(formValue(c, "gender", string(kdb.Female))),
		SkinColor: formValue(c, "skin_color", "medium"),
		ModelType: kdb.ModelType(formValue(c, "model_type", string(kdb.SMPLX))),
	}
	if spec.Name == "" {
		return spec, fmt.Errorf("%w: name is required", errForm)
	}

	age, err := strconv.Atoi(formValue(c, "age", ""))
	if err != nil || age < 0 {
		return spec, fmt.Errorf("%w: age should be a non-negative integer", errForm)
	}
	spec.Age = age

	for key, dest := range map[string]*float64{"height": &spec.Height, "weight": &spec.Weight} {
		v, err := strconv.ParseFloat(formValue(c, key, ""), 64)
		if err != nil || v <= 0 {
			return spec, fmt.Errorf("%w: %s should be a positive number", errForm, key)
		}
		*dest = v
	}

	if !spec.Gender.Valid() {
		return spec, fmt.Errorf("%w: gender should be one of female, male or neutral", errForm)
	}
	if !spec.ModelType.Valid() {
		return spec, fmt.Errorf("%w: model_type should be smpl or smplx", errForm)
	}
	return spec, nil
}

// CreateDollHandler handles POST /create_doll.
//
// It generates a doll model from the form, and records it.
func CreateDollHandler(
	dolls kdb.DollInterface,
	store *storage.Storage,
	gen Generator,
	publicURL string,
) echo.HandlerFunc {
	publicURL = strings.TrimSuffix(publicURL, "/")

	return func(c echo.Context) error {
		ctx := c.Request().Context()

		spec, err := parseDollForm(c)
		if err != nil {
			return apierr.BadRequest(err.Error(), err)
		}

		spec.ID = uuid.NewString()
		out, err := store.DollPath(spec.ID)
		if err != nil {
			return apierr.InternalServerError(err)
		}
		spec.FilePath = out
		spec.FileURL = publicURL + apidolls.Path(spec.ID)

		if _, err := gen.Create(ctx, generator.CreateParams{
			Out:       out,
			Gender:    string(spec.Gender),
			SkinColor: spec.SkinColor,
			ModelType: string(spec.ModelType),
			Height:    spec.Height,
			Weight:    spec.Weight,
		}); err != nil {
			c.Logger().Warnf("doll %s: generation failed: %s", spec.ID, err)
			return generationFailed(err)
		}

		if _, err := dolls.Insert(ctx, spec); err != nil {
			if rerr := os.Remove(out); rerr != nil {
				c.Logger().Warnf("doll %s: cannot remove orphan model: %s", spec.ID, rerr)
			}
			return apierr.InternalServerError(err)
		}

		c.Logger().Infof("doll %s: created", spec.ID)
		return c.JSON(http.StatusOK, apidolls.Created{
			DollId: spec.ID,
			File:   apidolls.Path(spec.ID),
		})
	}
}

// GetDollHandler handles GET /get_doll/:id .
//
// id can have ".glb" suffix.
func GetDollHandler(store *storage.Storage, param string) echo.HandlerFunc {
	return func(c echo.Context) error {
		id := strings.TrimSuffix(c.Param(param), ".glb")
		if err := storage.ValidID(id); err != nil {
			return apierr.NotFound("doll not found")
		}

		info, err := store.Stat(id)
		if errors.Is(err, storage.ErrMissing) {
			return apierr.NotFound("doll not found")
		} else if err != nil {
			return apierr.InternalServerError(err)
		}

		p, err := store.DollPath(id)
		if err != nil {
			return apierr.InternalServerError(err)
		}
		f, err := os.Open(p)
		if errors.Is(err, os.ErrNotExist) {
			return apierr.NotFound("doll not found")
		} else if err != nil {
			return apierr.InternalServerError(err)
		}
		defer f.Close()

		c.Response().Header().Set(echo.HeaderContentType, apidolls.MIMEModelGLTFBinary)
		http.ServeContent(c.Response(), c.Request(), id+".glb", info.ModTime(), f)
		return nil
	}
}

// UploadClothingHandler handles POST /upload_clothing/:id .
//
// It dresses the doll in the uploaded clothes. Uploads for the same doll are serialized.
func UploadClothingHandler(
	dolls kdb.DollInterface,
	store *storage.Storage,
	gen Generator,
	locks *Locks,
	publicURL string,
	param string,
) echo.HandlerFunc {
	publicURL = strings.TrimSuffix(publicURL, "/")

	return func(c echo.Context) error {
		ctx := c.Request().Context()

		id := c.Param(param)
		if err := storage.ValidID(id); err != nil {
			return apierr.NotFound("doll not found")
		}

		clothingType := apidolls.ClothingType(formValue(c, "clothing_type", ""))
		if !clothingType.Valid() {
			err := fmt.Errorf("%w: clothing_type %q", errForm, clothingType)
			return apierr.BadRequest("clothing_type should be one of tshirt, dress, jacket or shirt", err)
		}

		fh, err := c.FormFile("file")
		if err != nil {
			return apierr.BadRequest("file is required", err)
		}

		unlock := locks.Lock(id)
		defer unlock()

		if _, err := store.Stat(id); errors.Is(err, storage.ErrMissing) {
			return apierr.NotFound("doll not found")
		} else if err != nil {
			return apierr.InternalServerError(err)
		}

		src, err := fh.Open()
		if err != nil {
			return apierr.BadRequest("file cannot be read", err)
		}
		defer src.Close()

		image, err := store.SaveClothing(id, fh.Filename, src)
		if errors.Is(err, storage.ErrInvalidName) {
			return apierr.BadRequest("file should have a name", err)
		} else if err != nil {
			return apierr.InternalServerError(err)
		}

		doll, err := store.DollPath(id)
		if err != nil {
			return apierr.InternalServerError(err)
		}
		updated, err := store.UpdatedPath(id)
		if err != nil {
			return apierr.InternalServerError(err)
		}

		if err := store.DiscardUpdated(id); err != nil {
			return apierr.InternalServerError(err)
		}
		if _, err := gen.Apply(ctx, generator.ApplyParams{
			Doll: doll, Image: image, Out: updated, ClothingType: string(clothingType),
		}); err != nil {
			c.Logger().Warnf("doll %s: applying %s failed: %s", id, clothingType, err)
			return generationFailed(err)
		}

		if err := store.Replace(id); err != nil {
			return apierr.InternalServerError(err)
		}

		if _, err := dolls.UpdateFile(ctx, id, doll, publicURL+apidolls.Path(id)); errors.Is(err, kdb.ErrMissing) {
			c.Logger().Warnf("doll %s: file is updated, but it is not recorded", id)
		} else if err != nil {
			return apierr.InternalServerError(err)
		}

		c.Logger().Infof("doll %s: %s applied", id, clothingType)
		return c.JSON(http.StatusOK, apidolls.Applied{
			Message: fmt.Sprintf("%s applied", clothingType),
			File:    apidolls.Path(id),
		})
	}
}
