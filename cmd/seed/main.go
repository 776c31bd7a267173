// Command seed fills a database with fake users, threaded conversations and
// reactions by driving the same services the API uses.
package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/samber/lo"

	"github.com/cppla/threadline/config"
	"github.com/cppla/threadline/models"
	"github.com/cppla/threadline/repository"
	"github.com/cppla/threadline/services"
	"github.com/cppla/threadline/utils"
)

func main() {
	users := flag.Int("users", 20, "number of users to create")
	roots := flag.Int("threads", 10, "number of root posts")
	replies := flag.Int("replies", 8, "replies per root post")
	reactions := flag.Int("reactions", 200, "reaction attempts")
	seed := flag.Int64("seed", time.Now().UnixNano(), "random seed")
	flag.Parse()

	cfg := config.Load()
	if err := utils.InitLogger(cfg); err != nil {
		panic(err)
	}
	log := utils.Sugar.Named("seed")
	gofakeit.Seed(*seed)

	db, err := config.InitDatabase(cfg, config.Models...)
	if err != nil {
		log.Fatalw("database init failed", "error", err)
	}
	repo := repository.NewGormRepository(db)
	counters := services.NewCounterMaintainer(repo, log)
	publisher := services.NewPublisher(repo, counters, log, nil)
	ledger := services.NewLedger(repo, counters, log)
	ctx := context.Background()

	// 1. Users, all sharing one password.
	hash, err := utils.HashPassword("password123")
	if err != nil {
		log.Fatalw("hash password", "error", err)
	}
	userIDs := make([]uint, 0, *users)
	for i := 0; i < *users; i++ {
		u := &models.User{Username: fmt.Sprintf("%s-%d", gofakeit.Username(), i), PasswordHash: hash}
		if err := repo.CreateUser(ctx, u); err != nil {
			log.Fatalw("create user", "error", err)
		}
		userIDs = append(userIDs, u.ID)
	}

	// 2. Root posts, each with a tree of replies.
	var postIDs []uint
	for i := 0; i < *roots; i++ {
		root, err := publisher.CreatePost(ctx, services.NewPost{AuthorID: lo.Sample(userIDs), Content: gofakeit.Sentence(12)})
		if err != nil {
			log.Fatalw("create root", "error", err)
		}
		thread := []uint{root.ID}
		for j := 0; j < *replies; j++ {
			parent := lo.Sample(thread)
			reply, err := publisher.CreatePost(ctx, services.NewPost{
				AuthorID:     lo.Sample(userIDs),
				Content:      gofakeit.Sentence(8),
				ParentPostID: &parent,
			})
			if err != nil {
				log.Fatalw("create reply", "error", err)
			}
			thread = append(thread, reply.ID)
		}
		postIDs = append(postIDs, thread...)
	}

	// 3. Reactions; repeats toggle or replace like real traffic.
	outcomes := map[services.OutcomeKind]int{}
	for i := 0; i < *reactions; i++ {
		typ := lo.Sample(models.ReactionTypes)
		out, err := ledger.ApplyReaction(ctx, lo.Sample(userIDs), lo.Sample(postIDs), typ, services.ModeToggle)
		if err != nil {
			log.Warnw("apply reaction", "error", err)
			continue
		}
		outcomes[out.Kind()]++
	}

	log.Infow("seed complete",
		"users", len(userIDs),
		"posts", len(postIDs),
		"created", outcomes[services.OutcomeCreated],
		"removed", outcomes[services.OutcomeRemoved],
		"replaced", outcomes[services.OutcomeReplaced],
	)
}
