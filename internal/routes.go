package internal

import (
	"net/http"

	"listentier/internal/controllers"
	"listentier/internal/providers"
)

func InitRoutes(apiController *controllers.ApiController) providers.RouterProviderInterface {
	routers := providers.NewRouterProvider()

	routers.Post("/import", http.HandlerFunc(apiController.Import))
	routers.Post("/sync", http.HandlerFunc(apiController.Sync))
	routers.Get("/stats", http.HandlerFunc(apiController.GetStats))
	routers.Get("/top/artists", http.HandlerFunc(apiController.GetTopArtists))
	routers.Get("/top/tracks", http.HandlerFunc(apiController.GetTopTracks))
	routers.Get("/tier", http.HandlerFunc(apiController.GetTier))
	routers.Get("/reward", http.HandlerFunc(apiController.GetReward))
	routers.Post("/mint", http.HandlerFunc(apiController.Mint))
	routers.Delete("/history", http.HandlerFunc(apiController.ClearHistory))
	return routers
}
