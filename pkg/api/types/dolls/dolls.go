package dolls

// response of POST /create_doll
type Created struct {
	DollId string `json:"doll_id"`

	// path to download the doll from this server
	File string `json:"file"`
}

// response of POST /upload_clothing/:id
type Applied struct {
	Message string `json:"message"`
	File    string `json:"file"`
}

// Path returns the path to download the doll.
func Path(dollId string) string {
	return "/get_doll/" + dollId + ".glb"
}

const MIMEModelGLTFBinary = "model/gltf-binary"

type ClothingType string

const (
	TShirt ClothingType = "tshirt"
	Dress  ClothingType = "dress"
	Jacket ClothingType = "jacket"
	Shirt  ClothingType = "shirt"
)

func (c ClothingType) Valid() bool {
	switch c {
	case TShirt, Dress, Jacket, Shirt:
		return true
	}
	return false
}
