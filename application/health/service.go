package health

import (
	"bifurcate/middleware"

	json "github.com/json-iterator/go"
)

type Service struct {
	archiveRepo *Repository
	mirrorRepo  *Repository // nil when no mirror database is configured
}

func NewService(archiveRepo *Repository, mirrorRepo *Repository) *Service {
	return &Service{
		archiveRepo: archiveRepo,
		mirrorRepo:  mirrorRepo,
	}
}

func (s *Service) CheckHealth() (map[string]string, error) {
	result := make(map[string]string)

	if err := s.archiveRepo.Ping(); err != nil {
		result["archive_database"] = "error"
	} else {
		result["archive_database"] = "ok"
	}

	if s.mirrorRepo == nil {
		result["mirror_database"] = "disabled"
	} else if err := s.mirrorRepo.Ping(); err != nil {
		result["mirror_database"] = "error"
	} else {
		result["mirror_database"] = "ok"
	}

	return result, nil
}

func (s *Service) CheckHealthStream() <-chan middleware.StreamChunk {
	chunkChan := make(chan middleware.StreamChunk, 2)
	go func() {
		defer close(chunkChan)

		result, _ := s.CheckHealth()

		jsonData, _ := json.Marshal(result)
		chunkChan <- middleware.StreamChunk{
			Data: &jsonData,
		}
	}()
	return chunkChan
}
