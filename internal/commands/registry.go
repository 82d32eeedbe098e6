// Package commands declares the bot's command descriptors and their
// handlers.
package commands

import "tg_resumo_bot/internal/domain"

// WithStickerHashes sets the sticker-trigger digests on the matching
// descriptors. Hash data comes from configuration; the descriptors ship
// without any.
func WithStickerHashes(cmds []domain.Command, hashes map[domain.CommandKind][]string) []domain.Command {
	for i := range cmds {
		if h, ok := hashes[cmds[i].Kind]; ok && len(h) > 0 {
			cmds[i].StickerHashes = h
		}
	}
	return cmds
}

// Defaults returns the built-in command descriptors in matching order. The
// order is part of the dispatch contract: the matcher scans descriptors
// first to last.
func Defaults() []domain.Command {
	return []domain.Command{
		{
			Kind:        domain.KindResumo,
			Prefixes:    []string{"#resumo"},
			Description: "Gera um resumo das mensagens recentes do grupo",
			Permissions: &domain.Permissions{AllowedIn: []string{domain.AllowAll}},
			AutoDelete: domain.AutoDelete{
				CommandMessages: false,
				ErrorMessages:   true,
			},
			ErrorMessages: map[string]string{
				domain.ErrMsgError:      "Erro ao gerar o resumo.",
				domain.ErrMsgNotAllowed: "Você não tem permissão para usar este comando.",
				domain.ErrMsgNoMessages: "Não há mensagens suficientes para gerar um resumo.",
			},
			DefaultSummaryHours: 3,
		},
		{
			Kind:        domain.KindResumoConfig,
			Prefixes:    []string{"#ferramentaresumo"},
			Description: "Configura o resumo periódico de um grupo (apenas admin)",
			Permissions: &domain.Permissions{
				AllowedIn: []string{domain.AllowAll},
				AdminOnly: true,
			},
			AutoDelete: domain.AutoDelete{
				CommandMessages: false,
				ErrorMessages:   true,
			},
			ErrorMessages: map[string]string{
				domain.ErrMsgError:      "Ocorreu um erro na configuração do resumo.",
				domain.ErrMsgNotAllowed: "Você não tem permissão para usar este comando.",
			},
		},
		{
			Kind:        domain.KindAyubNews,
			Prefixes:    []string{"#ayubnews", "#ayub news"},
			Description: "Mostra as notícias mais recentes",
			Permissions: &domain.Permissions{AllowedIn: []string{domain.AllowAll}},
			AutoDelete: domain.AutoDelete{
				CommandMessages: false,
				ErrorMessages:   true,
			},
			ErrorMessages: map[string]string{
				domain.ErrMsgError:      "Erro ao buscar notícias.",
				domain.ErrMsgNotAllowed: "Você não tem permissão para usar este comando.",
				domain.ErrMsgNoArticles: "Nenhuma notícia encontrada.",
			},
		},
		{
			Kind:        domain.KindSticker,
			Prefixes:    []string{"#sticker"},
			Description: "Cria um sticker a partir de uma imagem ou palavra-chave",
			Permissions: &domain.Permissions{AllowedIn: []string{domain.AllowAll}},
			AutoDelete: domain.AutoDelete{
				CommandMessages: false,
				ErrorMessages:   true,
			},
			ErrorMessages: map[string]string{
				domain.ErrMsgError:      "Erro ao criar o sticker.",
				domain.ErrMsgNotAllowed: "Você não tem permissão para usar este comando.",
				domain.ErrMsgNoKeyword:  "Por favor, envie uma imagem ou uma palavra-chave junto com o comando.",
				domain.ErrMsgNoResults:  "Nenhuma imagem encontrada para essa palavra-chave.",
				domain.ErrMsgDownload:   "Erro ao baixar a imagem.",
			},
		},
		{
			Kind:        domain.KindDesenho,
			Prefixes:    []string{"#desenho"},
			Description: "Gera uma imagem a partir de uma descrição",
			Permissions: &domain.Permissions{AllowedIn: []string{domain.AllowAll}},
			AutoDelete: domain.AutoDelete{
				CommandMessages: false,
				ErrorMessages:   true,
			},
			ErrorMessages: map[string]string{
				domain.ErrMsgError:      "Erro ao gerar a imagem.",
				domain.ErrMsgNotAllowed: "Você não tem permissão para usar este comando.",
				domain.ErrMsgNoPrompt:   "Por favor, descreva o que você quer desenhar.",
				domain.ErrMsgGenerate:   "Não consegui gerar essa imagem. Tente outra descrição.",
			},
		},
		{
			Kind:        domain.KindAudio,
			Prefixes:    []string{"#audio"},
			Description: "Transcreve a mensagem de voz respondida",
			Permissions: &domain.Permissions{AllowedIn: []string{domain.AllowAll}},
			AutoDelete: domain.AutoDelete{
				CommandMessages: false,
				ErrorMessages:   true,
			},
			ErrorMessages: map[string]string{
				domain.ErrMsgError:         "Erro ao transcrever o áudio.",
				domain.ErrMsgNotAllowed:    "Você não tem permissão para usar este comando.",
				domain.ErrMsgTranscription: "Não consegui transcrever este áudio.",
			},
		},
		{
			Kind:        domain.KindCommandList,
			Prefixes:    []string{"#?", "#ajuda"},
			Description: "Lista os comandos disponíveis",
			Permissions: &domain.Permissions{AllowedIn: []string{domain.AllowAll}},
			AutoDelete: domain.AutoDelete{
				CommandMessages: true,
				ErrorMessages:   true,
			},
			ErrorMessages: map[string]string{
				domain.ErrMsgError:      "Erro ao listar os comandos.",
				domain.ErrMsgNotAllowed: "Você não tem permissão para usar este comando.",
			},
		},
		{
			Kind:        domain.KindCacheClear,
			Prefixes:    []string{"!cacheclear", "#cacheclear", "!clearcache", "#clearcache"},
			Description: "Limpa o cache do bot (apenas admin)",
			Permissions: &domain.Permissions{
				AllowedIn: []string{domain.AllowAll},
				AdminOnly: true,
			},
			AutoDelete: domain.AutoDelete{
				CommandMessages: false,
				ErrorMessages:   true,
			},
			ErrorMessages: map[string]string{
				domain.ErrMsgError:      "Erro ao limpar o cache.",
				domain.ErrMsgNotAllowed: "Você não tem permissão para usar este comando.",
			},
		},
		{
			// Free-form question fallback: reached through the generic
			// trigger character, never through its own prefix.
			Kind:        domain.KindChat,
			Description: "Responde perguntas livres (# seguido da pergunta)",
			Permissions: &domain.Permissions{AllowedIn: []string{domain.AllowAll}},
			AutoDelete: domain.AutoDelete{
				CommandMessages: false,
				ErrorMessages:   true,
			},
			ErrorMessages: map[string]string{
				domain.ErrMsgError:         "Desculpe, ocorreu um erro ao processar sua pergunta.",
				domain.ErrMsgNotAllowed:    "Você não tem permissão para usar este comando.",
				domain.ErrMsgInvalidFormat: "Por favor, escreva sua pergunta após o #. Exemplo: # qual a capital da França?",
			},
		},
	}
}
