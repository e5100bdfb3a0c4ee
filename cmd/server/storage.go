package main

import (
	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/ekran/internal/config"
	"github.com/Nixie-Tech-LLC/ekran/internal/storage"
)

// InitStorage selects the upload archive. It returns nil when archiving is
// off.
func InitStorage(cfg *config.Config) (storage.Storage, error) {
	if !cfg.ArchiveUploads {
		return nil, nil
	}
	if cfg.UseSpaces {
		spacesStorage, err := storage.NewSpacesStorage(
			cfg.SpacesEndpoint,
			cfg.SpacesRegion,
			cfg.SpacesBucket,
			cfg.SpacesCDNURL,
			cfg.SpacesAccessKey,
			cfg.SpacesSecretKey,
		)
		if err != nil {
			return nil, err
		}
		log.Info().Str("cdn", cfg.SpacesCDNURL).Msg("archiving uploads to DigitalOcean Spaces")
		return spacesStorage, nil
	}

	log.Info().Str("dir", cfg.UploadDir).Msg("archiving uploads to local disk")
	return storage.NewLocalStorage(cfg.UploadDir), nil
}
