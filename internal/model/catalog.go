package model

// CatalogTitle is one row of the film catalog search.
type CatalogTitle struct {
	ID         string `json:"id"`         // "movie-209968"
	IvaID      string `json:"ivaId"`      // "Movie/209968"
	Title      string `json:"title"`
	TitleNorm  string `json:"title_norm"`
	Year       int    `json:"year"`
	PosterPath string `json:"posterPath"` // image id served by the image proxy
	MediaType  string `json:"mediaType"`
}
